package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/health"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/lifecycle"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/request"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/ssh"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Provision (or reuse) a guest container",
	Long: `Provision an SSH-accessible container for a guest.

A repeated request for the same username with the same key, image and
port returns the existing allocation without touching the runtime.
Differing requests are rejected unless --force is given.

Fields may also come from a JSON request file (--config); explicitly set
flags take precedence over the file.`,
	Args: cobra.NoArgs,
	RunE: runUp,
}

var (
	upRaw           request.Raw
	upPublicKeyFile string
	upRequestFile   string
	upNoPrompt      bool
	upExport        string
	upWait          bool
	upWaitTimeout   time.Duration
)

// upFileFields lists the request-file fields and the flag each one yields to.
var upFileFields = []struct {
	flag  string
	apply func(rf *config.RequestFile, raw *request.Raw)
}{
	{"username", func(rf *config.RequestFile, raw *request.Raw) { setString(&raw.Username, rf.Username) }},
	{"port", func(rf *config.RequestFile, raw *request.Raw) {
		if rf.Port != nil {
			raw.Port = *rf.Port
		}
	}},
	{"public-key", func(rf *config.RequestFile, raw *request.Raw) { setString(&raw.PublicKey, rf.PublicKey) }},
	{"container-image", func(rf *config.RequestFile, raw *request.Raw) { setString(&raw.ContainerImage, rf.ContainerImage) }},
	{"gpus", func(rf *config.RequestFile, raw *request.Raw) { setString(&raw.GPUs, rf.GPUs) }},
	{"dry-run", func(rf *config.RequestFile, raw *request.Raw) { setBool(&raw.DryRun, rf.DryRun) }},
	{"reverse-proxy-host", func(rf *config.RequestFile, raw *request.Raw) { setString(&raw.ReverseProxyHost, rf.ReverseProxyHost) }},
	{"extra-docker-run-args", func(rf *config.RequestFile, raw *request.Raw) { setString(&raw.ExtraRunArgs, rf.ExtraRunArgs) }},
	{"force", func(rf *config.RequestFile, raw *request.Raw) { setBool(&raw.Force, rf.Force) }},
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func init() {
	f := upCmd.Flags()
	f.StringVarP(&upRaw.Username, "username", "u", "", "Guest username")
	f.IntVarP(&upRaw.Port, "port", "p", request.NoPort, "Desired host port (default: allocate)")
	f.StringVarP(&upRaw.PublicKey, "public-key", "k", "", "Guest SSH public key (authorized_keys line)")
	f.StringVar(&upPublicKeyFile, "public-key-file", "", "Read the guest SSH public key from a file")
	f.StringVarP(&upRaw.ContainerImage, "container-image", "c", "", "Base image (default from host config)")
	f.StringVar(&upRaw.ContainerImage, "container-name", "", "Alias for --container-image")
	f.StringVarP(&upRaw.GPUs, "gpus", "g", "", "GPU spec passed to the runtime (e.g. all, device=0)")
	f.BoolVarP(&upRaw.DryRun, "dry-run", "n", false, "Validate and render only; change nothing")
	f.StringVarP(&upRaw.ReverseProxyHost, "reverse-proxy-host", "H", "", "Host guests connect through; adds a reverse tunnel script")
	f.StringVar(&upRaw.ExtraRunArgs, "extra-docker-run-args", "", "Extra arguments for the container run (shell syntax)")
	f.BoolVarP(&upRaw.Force, "force", "f", false, "Replace a conflicting allocation")
	f.StringVar(&upRequestFile, "config", "", "JSON request file")
	f.BoolVar(&upNoPrompt, "no-prompt", false, "Never ask before replacing an allocation")
	f.StringVar(&upExport, "export", "", "Write the rendered build context to a .tar.gz file")
	f.BoolVar(&upWait, "wait", false, "Wait for the guest's sshd to answer")
	f.DurationVar(&upWaitTimeout, "wait-timeout", health.SSHReadyTimeout, "How long --wait waits")
	rootCmd.AddCommand(upCmd)
}

// buildRaw merges the request file, flags and host defaults.
func buildRaw(cmd *cobra.Command) (request.Raw, error) {
	raw := upRaw
	flags := cmd.Flags()

	if flags.Changed("public-key-file") {
		if flags.Changed("public-key") {
			return raw, errors.New(errors.KindInvalidInput, errors.ExitInvalidInput, "--public-key and --public-key-file are mutually exclusive")
		}
		data, err := os.ReadFile(upPublicKeyFile)
		if err != nil {
			return raw, errors.Wrap(errors.KindInvalidInput, errors.ExitInvalidInput, "failed to read public key file", err)
		}
		raw.PublicKey = strings.TrimSpace(string(data))
	}

	if upRequestFile != "" {
		rf, err := config.LoadRequestFile(upRequestFile)
		if err != nil {
			return raw, errors.ConfigError("invalid request file", err)
		}
		for _, k := range rf.Unknown {
			logWarning("Ignoring unknown request file key %q", k)
		}

		explicit := func(name string) bool {
			switch name {
			case "public-key":
				return flags.Changed("public-key") || flags.Changed("public-key-file")
			case "container-image":
				return flags.Changed("container-image") || flags.Changed("container-name")
			}
			return flags.Changed(name)
		}
		for _, field := range upFileFields {
			if !explicit(field.flag) {
				field.apply(rf, &raw)
			}
		}
	}

	if raw.ContainerImage == "" {
		raw.ContainerImage = hostConfig().DefaultImage
	}
	return raw, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	raw, err := buildRaw(cmd)
	if err != nil {
		return err
	}

	mgr, err := manager()
	if err != nil {
		return err
	}

	logging.Debug("provisioning request", "username", raw.Username, "port", raw.Port, "dryRun", raw.DryRun)

	res, err := mgr.Provision(ctx, raw)
	if errors.Is(err, errors.ErrConflictingAllocation) && !raw.Force && !raw.DryRun && confirmReplace(cmd.InOrStdin(), raw.Username, err) {
		raw.Force = true
		res, err = mgr.Provision(ctx, raw)
	}
	if err != nil {
		reportFailure(err)
		return err
	}

	for _, w := range res.Warnings {
		logWarning("%s", w)
	}

	if upExport != "" {
		if err := exportContext(res, upExport); err != nil {
			return err
		}
	}

	printResult(res)

	if upWait && !res.DryRun {
		logInfo("Waiting for sshd on port %d...", res.Port)
		if _, err := health.WaitForBanner(ctx, probeHost, res.Port, upWaitTimeout); err != nil {
			logWarning("%v", err)
		} else {
			logSuccess("sshd is answering on port %d", res.Port)
		}
	}

	return nil
}

// confirmReplace asks the operator whether a conflicting allocation
// should be replaced. Without a terminal the answer is no.
func confirmReplace(in io.Reader, username string, conflict error) bool {
	if upNoPrompt || !stdinIsTerminal() {
		return false
	}

	logWarning("%v", conflict)
	fmt.Fprintf(out(), "Replace allocation for %s? [y/N] ", username)

	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func reportFailure(err error) {
	var ge *errors.GuestError
	if !errors.As(err, &ge) || ge.Kind != errors.KindProvisioningFailed || ge.Output == "" {
		return
	}
	logError("%s step failed (exit %d); last output:\n%s", ge.Step, ge.ExitStatus, ge.OutputTail(20))
}

func exportContext(res *lifecycle.Result, path string) error {
	if res.Context == nil {
		logWarning("Nothing to export: existing allocation was reused")
		return nil
	}
	data, err := res.Context.ArchiveBytes()
	if err != nil {
		return fmt.Errorf("failed to archive build context: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logInfo("Build context written to %s", path)
	return nil
}

func printResult(res *lifecycle.Result) {
	w := out()

	switch {
	case res.DryRun && res.Reused:
		logInfo("Dry run: allocation for %s already exists", res.Username)
	case res.DryRun:
		logInfo("Dry run: would allocate port %d for %s", res.Port, res.Username)
	case res.Reused:
		logSuccess("Reusing allocation for %s", res.Username)
	case res.Replaced != nil:
		logSuccess("Replaced allocation for %s (was port %d)", res.Username, res.Replaced.Port)
	default:
		logSuccess("Allocated guest %s", res.Username)
	}

	fmt.Fprintf(w, "  Host: %s\n", res.Host)
	fmt.Fprintf(w, "  Port: %d\n", res.Port)
	fmt.Fprintf(w, "  Username: %s\n", res.Username)
	fmt.Fprintf(w, "  Container: %s\n", res.ContainerName)
	if res.Digest != "" {
		fmt.Fprintf(w, "  Context digest: %s\n", res.Digest)
	}
	if res.DryRun && res.Context != nil {
		for _, f := range res.Context.Files() {
			fmt.Fprintf(w, "  Would write: %s\n", f.Name)
		}
	}
	fmt.Fprintf(w, "  Connect: %s\n", ssh.DefaultOptions(res.Username, res.Host, res.Port).Command())
	logging.Debug("provisioning trace", "states", res.Trace)
}

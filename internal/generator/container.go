package generator

import (
	"archive/tar"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	gerrors "github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/sshkey"
)

// Build context file names.
const (
	DockerfileName     = "Dockerfile"
	AuthorizedKeysName = "authorized_keys"
	RunScriptName      = "run_container.sh"
	StopScriptName     = "stop_container.sh"
	TunnelScriptName   = ".ssh_reverse_tunnel.sh"
)

// File is one entry of a build context.
type File struct {
	Name string
	Data []byte
	Mode os.FileMode
}

// BuildContext is a rendered, self-contained image build input for one user.
type BuildContext struct {
	Username  string
	BaseImage string
	PublicKey *sshkey.PublicKey

	files map[string]File
}

// Renderer renders build contexts from a Dockerfile template.
type Renderer struct {
	// TemplatePath is the Dockerfile template. Empty uses the embedded default.
	TemplatePath string

	// SSHPort is the port sshd listens on inside the container.
	SSHPort int
}

// NewRenderer creates a Renderer from the host configuration.
func NewRenderer(cfg *config.HostConfig) *Renderer {
	return &Renderer{
		TemplatePath: cfg.Template.Path,
		SSHPort:      cfg.Runtime.SSHPort,
	}
}

// Render builds the context for username. The authorized_keys payload holds
// exactly publicKey followed by a newline.
func (r *Renderer) Render(username, publicKey, baseImage string) (*BuildContext, error) {
	if err := config.ValidateUsername(username); err != nil {
		return nil, gerrors.InvalidUsername(username, err)
	}
	key, err := sshkey.Parse(publicKey)
	if err != nil {
		return nil, gerrors.InvalidKey(err)
	}
	if baseImage == "" {
		return nil, gerrors.MissingImage()
	}

	tmpl, err := loadTemplate(r.TemplatePath)
	if err != nil {
		return nil, gerrors.TemplateError(r.templateName(), err)
	}

	dockerfile, err := renderDockerfile(tmpl, &TemplateData{
		Username:  username,
		BaseImage: baseImage,
		SSHPort:   defaultSSHPort(r.SSHPort),
	})
	if err != nil {
		return nil, gerrors.TemplateError(r.templateName(), err)
	}

	ctx := &BuildContext{
		Username:  username,
		BaseImage: baseImage,
		PublicKey: key,
		files:     make(map[string]File),
	}
	ctx.add(DockerfileName, dockerfile, 0644)
	ctx.add(AuthorizedKeysName, []byte(strings.TrimSpace(publicKey)+"\n"), 0600)

	return ctx, nil
}

func (r *Renderer) templateName() string {
	if r.TemplatePath == "" {
		return DefaultTemplateName
	}
	return r.TemplatePath
}

func (c *BuildContext) add(name string, data []byte, mode os.FileMode) {
	c.files[name] = File{Name: name, Data: data, Mode: mode}
}

// Files returns the context entries sorted by name.
func (c *BuildContext) Files() []File {
	names := make([]string, 0, len(c.files))
	for name := range c.files {
		names = append(names, name)
	}
	sort.Strings(names)

	files := make([]File, len(names))
	for i, name := range names {
		files[i] = c.files[name]
	}
	return files
}

// File returns the contents of a single entry.
func (c *BuildContext) File(name string) ([]byte, bool) {
	f, ok := c.files[name]
	return f.Data, ok
}

// Digest returns the hex BLAKE3 hash over sorted file names, modes and contents.
func (c *BuildContext) Digest() string {
	h := blake3.New()
	for _, f := range c.Files() {
		_, _ = io.WriteString(h, f.Name)
		_, _ = h.Write([]byte{0})
		_, _ = io.WriteString(h, strconv.FormatUint(uint64(f.Mode.Perm()), 8))
		_, _ = h.Write([]byte{0})
		_, _ = io.WriteString(h, strconv.Itoa(len(f.Data)))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(f.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Materialize writes the context to dir, replacing whatever was there. The
// new tree is assembled next to dir and renamed into place, so no file from
// an earlier render survives.
func (c *BuildContext) Materialize(dir string) error {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create connections directory: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	for _, f := range c.Files() {
		path, err := securejoin.SecureJoin(tmp, f.Name)
		if err != nil {
			return fmt.Errorf("invalid context file name %q: %w", f.Name, err)
		}
		if err := os.WriteFile(path, f.Data, f.Mode); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
		// WriteFile honors umask; the scripts must stay executable.
		if err := os.Chmod(path, f.Mode); err != nil {
			return fmt.Errorf("failed to chmod %s: %w", f.Name, err)
		}
	}
	if err := os.Chmod(tmp, 0755); err != nil {
		return fmt.Errorf("failed to chmod staging directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove previous context: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("failed to install context: %w", err)
	}
	committed = true
	return nil
}

// Archive writes the context as a gzip-compressed tar stream. Entry
// timestamps are fixed so identical contexts produce identical archives.
func (c *BuildContext) Archive(w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, f := range c.Files() {
		hdr := &tar.Header{
			Name:    f.Name,
			Mode:    int64(f.Mode.Perm()),
			Size:    int64(len(f.Data)),
			ModTime: time.Unix(0, 0).UTC(),
			Format:  tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", f.Name, err)
		}
		if _, err := tw.Write(f.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to close tar stream: %w", err)
	}
	return gz.Close()
}

// ArchiveBytes returns Archive's output as a byte slice.
func (c *BuildContext) ArchiveBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Archive(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

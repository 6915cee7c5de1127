package request_test

import (
	"reflect"
	"testing"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/request"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/testutil"
)

var testRange = config.PortRange{From: 2222, To: 2230}

func validRaw(t *testing.T) request.Raw {
	t.Helper()
	return request.Raw{
		Username:       "rdyro",
		Port:           request.NoPort,
		PublicKey:      testutil.PublicKey(t, "rdyro@laptop"),
		ContainerImage: "ubuntu:latest",
	}
}

func TestValidate_Normalizes(t *testing.T) {
	raw := validRaw(t)
	raw.Username = "  rdyro  "
	raw.PublicKey = "  " + raw.PublicKey + "\n"
	raw.ContainerImage = " ubuntu:latest "
	raw.GPUs = " all "
	raw.ReverseProxyHost = " proxy.example.org "
	raw.ExtraRunArgs = `--shm-size 8g -e "GREETING=hello world"`

	req, err := request.Validate(raw, testRange)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if req.Username != "rdyro" {
		t.Errorf("Username = %q, want rdyro", req.Username)
	}
	if req.HasDesiredPort() {
		t.Errorf("HasDesiredPort() = true for NoPort")
	}
	if req.ContainerImage != "ubuntu:latest" || req.GPUs != "all" || req.ReverseProxyHost != "proxy.example.org" {
		t.Errorf("fields not trimmed: %+v", req)
	}
	if req.Fingerprint == "" {
		t.Error("Fingerprint is empty")
	}
	want := []string{"--shm-size", "8g", "-e", "GREETING=hello world"}
	if got := req.RunArgs(); !reflect.DeepEqual(got, want) {
		t.Errorf("RunArgs() = %q, want %q", got, want)
	}
	if !req.Mutates() {
		t.Error("Mutates() = false without dry-run")
	}
}

func TestValidate_PortHandling(t *testing.T) {
	tests := []struct {
		port    int
		want    int
		wantErr bool
	}{
		{request.NoPort, 0, false},
		{0, 0, false},
		{2222, 2222, false},
		{2230, 2230, false},
		{2221, 0, true},
		{2231, 0, true},
		{-5, 0, true},
		{70000, 0, true},
	}

	for _, tt := range tests {
		raw := validRaw(t)
		raw.Port = tt.port

		req, err := request.Validate(raw, testRange)
		if tt.wantErr {
			if !errors.Is(err, &errors.GuestError{Reason: errors.ReasonInvalidPort}) {
				t.Errorf("Validate(port=%d) error = %v, want InvalidPort", tt.port, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Validate(port=%d) failed: %v", tt.port, err)
			continue
		}
		if req.DesiredPort != tt.want {
			t.Errorf("Validate(port=%d).DesiredPort = %d, want %d", tt.port, req.DesiredPort, tt.want)
		}
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*request.Raw)
		reason errors.Reason
	}{
		{"missing username", func(r *request.Raw) { r.Username = "" }, errors.ReasonMissingUsername},
		{"blank username", func(r *request.Raw) { r.Username = "   " }, errors.ReasonMissingUsername},
		{"path separator", func(r *request.Raw) { r.Username = "../root" }, errors.ReasonInvalidUsername},
		{"control char", func(r *request.Raw) { r.Username = "bob\x07" }, errors.ReasonInvalidUsername},
		{"inner space", func(r *request.Raw) { r.Username = "rob dyro" }, errors.ReasonInvalidUsername},
		{"missing key", func(r *request.Raw) { r.PublicKey = "" }, errors.ReasonInvalidKey},
		{"garbage key", func(r *request.Raw) { r.PublicKey = "not a key" }, errors.ReasonInvalidKey},
		{"two keys", func(r *request.Raw) { r.PublicKey = r.PublicKey + "\n" + r.PublicKey }, errors.ReasonInvalidKey},
		{"missing image", func(r *request.Raw) { r.ContainerImage = "  " }, errors.ReasonMissingImage},
		{"unterminated quote", func(r *request.Raw) { r.ExtraRunArgs = `-e "FOO=bar` }, errors.ReasonInvalidRunArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw(t)
			tt.modify(&raw)

			_, err := request.Validate(raw, testRange)
			if err == nil {
				t.Fatal("Validate should fail")
			}
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("error kind = %q, want InvalidInput", errors.KindOf(err))
			}
			if !errors.Is(err, &errors.GuestError{Reason: tt.reason}) {
				t.Errorf("error = %v, want reason %s", err, tt.reason)
			}
			if code := errors.GetExitCode(err); code != errors.ExitInvalidInput {
				t.Errorf("exit code = %d, want %d", code, errors.ExitInvalidInput)
			}
		})
	}
}

func TestValidate_UsernameCheckedFirst(t *testing.T) {
	raw := request.Raw{Port: 1, PublicKey: "junk"}

	_, err := request.Validate(raw, testRange)
	if !errors.Is(err, &errors.GuestError{Reason: errors.ReasonMissingUsername}) {
		t.Errorf("error = %v, want MissingUsername", err)
	}
}

func TestValidate_BlankRunArgs(t *testing.T) {
	for _, args := range []string{"", "   ", "\t\n"} {
		raw := validRaw(t)
		raw.ExtraRunArgs = args

		req, err := request.Validate(raw, testRange)
		if err != nil {
			t.Fatalf("Validate(%q) failed: %v", args, err)
		}
		if got := req.RunArgs(); got != nil {
			t.Errorf("RunArgs() for %q = %q, want nil", args, got)
		}
	}
}

func TestRequest_RunArgsIsCopy(t *testing.T) {
	raw := validRaw(t)
	raw.ExtraRunArgs = "--ipc host"

	req, err := request.Validate(raw, testRange)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	args := req.RunArgs()
	args[0] = "--privileged"
	if req.RunArgs()[0] != "--ipc" {
		t.Error("modifying RunArgs() result changed the request")
	}
}

func TestRequest_DryRunAndForce(t *testing.T) {
	raw := validRaw(t)
	raw.DryRun = true

	req, err := request.Validate(raw, testRange)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if req.Mutates() {
		t.Error("Mutates() = true for a dry run")
	}

	forced := req.WithForce()
	if !forced.Force || req.Force {
		t.Errorf("WithForce() = %v, original = %v; want true, false", forced.Force, req.Force)
	}
}

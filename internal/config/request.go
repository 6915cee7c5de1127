package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/tidwall/jsonc"
)

// RequestFile holds the provisioning fields read from a JSON request file.
// Nil fields were not present in the file.
type RequestFile struct {
	Username         *string
	Port             *int
	PublicKey        *string
	ContainerImage   *string
	GPUs             *string
	DryRun           *bool
	ReverseProxyHost *string
	ExtraRunArgs     *string
	Force            *bool

	// Unknown lists keys that matched no field, sorted.
	Unknown []string
}

// Accepted spellings per field. When a file holds several spellings of the
// same field the later one in this list wins.
var (
	usernameKeys     = []string{"username"}
	portKeys         = []string{"port"}
	publicKeyKeys    = []string{"public_key", "public-key", "publicKey", "publicKeyStr", "public_key_str"}
	imageKeys        = []string{"container_name", "container-name", "containerName", "container_image", "container-image", "containerImage"}
	gpusKeys         = []string{"gpus"}
	dryRunKeys       = []string{"dry_run", "dry-run", "dryRun"}
	proxyHostKeys    = []string{"reverse_proxy_host", "reverse-proxy-host", "reverseProxyHost"}
	extraRunArgsKeys = []string{"extra_docker_run_args", "extra-docker-run-args", "extraDockerRunArgs"}
	forceKeys        = []string{"force"}
)

// LoadRequestFile reads a request file. Comments and trailing commas are
// allowed.
func LoadRequestFile(path string) (*RequestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}

	rf, err := ParseRequestFile(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse request file %s: %w", path, err)
	}
	return rf, nil
}

// ParseRequestFile decodes request file contents.
func ParseRequestFile(data []byte) (*RequestFile, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, err
	}

	rf := &RequestFile{}
	known := make(map[string]bool)

	lookup := func(keys []string) (json.RawMessage, string) {
		var value json.RawMessage
		var found string
		for _, k := range keys {
			known[k] = true
			if v, ok := raw[k]; ok {
				value, found = v, k
			}
		}
		return value, found
	}

	var err error
	if rf.Username, err = stringField(lookup(usernameKeys)); err != nil {
		return nil, err
	}
	if rf.PublicKey, err = stringField(lookup(publicKeyKeys)); err != nil {
		return nil, err
	}
	if rf.ContainerImage, err = stringField(lookup(imageKeys)); err != nil {
		return nil, err
	}
	if rf.GPUs, err = stringField(lookup(gpusKeys)); err != nil {
		return nil, err
	}
	if rf.ReverseProxyHost, err = stringField(lookup(proxyHostKeys)); err != nil {
		return nil, err
	}
	if rf.Port, err = portField(lookup(portKeys)); err != nil {
		return nil, err
	}
	if rf.DryRun, err = boolField(lookup(dryRunKeys)); err != nil {
		return nil, err
	}
	if rf.Force, err = boolField(lookup(forceKeys)); err != nil {
		return nil, err
	}
	if rf.ExtraRunArgs, err = argsField(lookup(extraRunArgsKeys)); err != nil {
		return nil, err
	}

	for k := range raw {
		if !known[k] {
			rf.Unknown = append(rf.Unknown, k)
		}
	}
	sort.Strings(rf.Unknown)

	return rf, nil
}

func stringField(value json.RawMessage, key string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, fmt.Errorf("%s must be a string", key)
	}
	return &s, nil
}

func boolField(value json.RawMessage, key string) (*bool, error) {
	if value == nil {
		return nil, nil
	}
	var b bool
	if err := json.Unmarshal(value, &b); err != nil {
		return nil, fmt.Errorf("%s must be a boolean", key)
	}
	return &b, nil
}

// portField accepts a number or a numeric string.
func portField(value json.RawMessage, key string) (*int, error) {
	if value == nil {
		return nil, nil
	}
	var n int
	if err := json.Unmarshal(value, &n); err == nil {
		return &n, nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		n, convErr := strconv.Atoi(strings.TrimSpace(s))
		if convErr == nil {
			return &n, nil
		}
	}
	return nil, fmt.Errorf("%s must be an integer", key)
}

// argsField accepts a shell-style string or an array of arguments.
func argsField(value json.RawMessage, key string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return &s, nil
	}
	var list []string
	if err := json.Unmarshal(value, &list); err == nil {
		joined := shellquote.Join(list...)
		return &joined, nil
	}
	return nil, fmt.Errorf("%s must be a string or an array of strings", key)
}

package cmd_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"relay/cmd"
	"relay/metric"
	"relay/signal"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    signal.Config
		wantErr bool
	}{
		{
			name: "given valid args when parsed then return config",
			args: []string{"-port=8080", "-key=/path/to/key.pem", "-cert=/path/to/cert.pem"},
			want: signal.Config{Port: 8080, KeyFile: "/path/to/key.pem", CertFile: "/path/to/cert.pem",
				UploadDir: signal.DefaultUploadDir},
		},
		{
			name: "given missing port when parsed then return config with default port",
			args: []string{"-key=/path/to/key.pem", "-cert=/path/to/cert.pem"},
			want: signal.Config{Port: signal.DefaultPort, KeyFile: "/path/to/key.pem", CertFile: "/path/to/cert.pem",
				UploadDir: signal.DefaultUploadDir},
		},
		{
			name: "given upload dir when parsed then return config with upload dir",
			args: []string{"-uploads=/var/data/uploads"},
			want: signal.Config{Port: signal.DefaultPort, UploadDir: "/var/data/uploads"},
		},
		{
			name: "given no args when parsed then return config",
			args: []string{},
			want: signal.Config{Port: signal.DefaultPort, UploadDir: signal.DefaultUploadDir},
		},
		{
			name:    "given extra args when parsed then return error",
			args:    []string{"-port=8080", "extra"},
			wantErr: true,
		},
		{
			name:    "given invalid flag format when parsed then return error",
			args:    []string{"-extra"},
			wantErr: true,
		},
		{
			name:    "given invalid non-flag args when parsed then return error",
			args:    []string{"port"},
			wantErr: true,
		},
		{
			name:    "given port flag without value when parsed then return error",
			args:    []string{"-port"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			got, err := cmd.Parse(&output, tt.args)
			if tt.wantErr {
				assert.Errorf(t, err, "parse() = %v, wantErr %v", got, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Truef(t, got.Signal.IsSame(tt.want), "parse() = %v, want %v", got, tt.want)
		})
	}
}

func TestParseMetricArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want metric.Config
	}{
		{
			name: "given metric args when parsed then return config",
			args: []string{"-metric-port=9100", "-metric-path=/stats"},
			want: metric.Config{Port: 9100, Path: "/stats"},
		},
		{
			name: "given no metric args when parsed then return defaults",
			args: []string{},
			want: metric.Config{Port: metric.DefaultMetricsPort, Path: metric.DefaultMetricsPath},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			got, err := cmd.Parse(&output, tt.args)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got.Metric)
		})
	}
}

func createTempFile() (string, error) {
	tmpFile, err := os.CreateTemp("", "testfile")
	if err != nil {
		return "", err
	}
	if closeErr := tmpFile.Close(); closeErr != nil {
		return "", closeErr
	}
	return tmpFile.Name(), nil
}

func TestSetupConfig(t *testing.T) {
	keyFile, err := createTempFile()
	assert.NoError(t, err)
	certFile, err := createTempFile()
	assert.NoError(t, err)
	defer func() {
		_ = os.Remove(keyFile)
		_ = os.Remove(certFile)
	}()

	tests := []struct {
		name     string
		args     []string
		expected signal.Config
		wantErr  bool
	}{
		{
			name: "given valid args when setup config then return valid config",
			args: []string{"-port=8080", "-key=" + keyFile, "-cert=" + certFile},
			expected: signal.Config{
				Port:      8080,
				KeyFile:   keyFile,
				CertFile:  certFile,
				UploadDir: signal.DefaultUploadDir,
			},
		},
		{
			name: "given no args when setup config then return default config",
			args: []string{},
			expected: signal.Config{
				Port:      signal.DefaultPort,
				UploadDir: signal.DefaultUploadDir,
			},
		},
		{
			name:    "given invalid port value when setup config then return error",
			args:    []string{"-port=70000"},
			wantErr: true,
		},
		{
			name:    "given empty upload dir when setup config then return error",
			args:    []string{"-uploads="},
			wantErr: true,
		},
		{
			name:    "given invalid metric port when setup config then return error",
			args:    []string{"-metric-port=0"},
			wantErr: true,
		},
		{
			name:    "given non-existent cert file when setup config then return error",
			args:    []string{"-port=8080", "-key=" + keyFile, "-cert=/non/existent/cert.pem"},
			wantErr: true,
		},
		{
			name:    "given non-existent key file when setup config then return error",
			args:    []string{"-port=8080", "-cert=" + certFile, "-key=/non/existent/key.pem"},
			wantErr: true,
		},
		{
			name:    "given invalid flag format when setup config then return error",
			args:    []string{"-extra"},
			wantErr: true,
		},
		{
			name:    "given only cert file when setup config then return error",
			args:    []string{"-port=8080", "-cert=" + certFile},
			wantErr: true,
		},
		{
			name:    "given only key file when setup config then return error",
			args:    []string{"-port=8080", "-key=" + keyFile},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			config, err := cmd.SetupConfig(&output, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Truef(t, config.Signal.IsSame(tt.expected), "SetupConfig() = %v, expected %v", config, tt.expected)
		})
	}
}

package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-c", "conf.json", "-a", "localhost"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-c", "conf.json"},
		},
		{
			name:    "equals form",
			args:    []string{"-config=alt.json", "-a", "localhost"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config=alt.json"},
		},
		{
			name:    "unknown flags dropped",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "flag at the end keeps no value",
			args:    []string{"-a", ":1", "-c"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "next token is a flag",
			args:    []string{"-c", "-d", "dsn"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "several allowed flags keep order",
			args:    []string{"-w", "10", "-m", "5", "-a", ":1"},
			allowed: []string{"-m", "-w"},
			want:    []string{"-w", "10", "-m", "5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"testbin"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestJsonConfigFlags(t *testing.T) {
	withArgs(t, "-a", ":50051", "-config", "server.json")
	assert.Equal(t, "server.json", JsonConfigFlags())

	withArgs(t, "-c=short.json")
	assert.Equal(t, "short.json", JsonConfigFlags())

	withArgs(t, "-a", ":50051")
	assert.Equal(t, "", JsonConfigFlags())
}

func TestEnvFileFlags(t *testing.T) {
	withArgs(t, "-env", "local.env", "-c", "x.json")
	assert.Equal(t, "local.env", EnvFileFlags())

	withArgs(t)
	assert.Equal(t, "", EnvFileFlags())
}

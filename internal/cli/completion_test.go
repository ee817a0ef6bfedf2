package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func complete(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var out bytes.Buffer
	root := New(io.Discard, LogInfo).RootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestProblemFileCompletion(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
		not  []string
	}{
		{"solve", []string{"__complete", "solve", ""}, []string{"toml", "json", ":8"}, nil},
		{"inspect", []string{"__complete", "inspect", ""}, []string{"toml", "json", ":8"}, nil},
		{"second argument", []string{"__complete", "solve", "a.toml", ""}, []string{":4"}, []string{"toml"}},
		{"result flag", []string{"__complete", "visualize", "a.toml", "--result", ""}, []string{"json", ":8"}, []string{"toml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := complete(t, tt.args...)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("completion missing %q:\n%s", w, out)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(out, n) {
					t.Errorf("completion should not offer %q:\n%s", n, out)
				}
			}
		})
	}
}

func TestCompletionScript(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			if out := complete(t, "completion", shell); !strings.Contains(out, appName) {
				t.Errorf("%s script does not mention %s", shell, appName)
			}
		})
	}
}

package app

import (
	"testing"
)

func TestNewRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(nil)

	for _, name := range []Command{CommandServe, CommandMigrate, CommandHealthcheck} {
		cmd, _, err := root.Find([]string{string(name)})
		if err != nil {
			t.Errorf("Find(%q) error = %v", name, err)
			continue
		}
		if cmd.Name() != string(name) {
			t.Errorf("Find(%q) = %q", name, cmd.Name())
		}
	}
}

func TestNewRootCommand_DefaultsToServe(t *testing.T) {
	root := NewRootCommand(nil)

	if root.RunE == nil {
		t.Fatal("root command should run the server when no subcommand is given")
	}
	if root.Flags().Lookup("migrate") == nil {
		t.Error("root command should accept --migrate")
	}
}

func TestNewRootCommand_ServeMigrateFlag(t *testing.T) {
	root := NewRootCommand(nil)
	serve, _, err := root.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("Find(serve) error = %v", err)
	}

	flag := serve.Flags().Lookup("migrate")
	if flag == nil {
		t.Fatal("serve should accept --migrate")
	}
	if flag.DefValue != "false" {
		t.Errorf("--migrate default = %q, want false", flag.DefValue)
	}
}

func TestNewRootCommand_HealthcheckPortDefault(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	root := NewRootCommand(nil)
	hc, _, _ := root.Find([]string{"healthcheck"})

	if got := hc.Flags().Lookup("port").DefValue; got != defaultServerPort {
		t.Errorf("--port default = %q, want %q", got, defaultServerPort)
	}

	t.Setenv("SERVER_PORT", "9999")
	root = NewRootCommand(nil)
	hc, _, _ = root.Find([]string{"healthcheck"})

	if got := hc.Flags().Lookup("port").DefValue; got != "9999" {
		t.Errorf("--port default = %q, want %q", got, "9999")
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CommandServe, "serve"},
		{CommandMigrate, "migrate"},
		{CommandHealthcheck, "healthcheck"},
	}
	for _, tt := range tests {
		if string(tt.cmd) != tt.want {
			t.Errorf("Command = %q, want %q", tt.cmd, tt.want)
		}
	}
}

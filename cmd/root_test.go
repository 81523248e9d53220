/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"bytes"
	"testing"
)

func TestRootCmd_Flags(t *testing.T) {
	tests := []struct {
		name         string
		flagName     string
		defaultValue interface{}
		flagType     string
		persistent   bool
	}{
		{
			name:         "db flag defaults to the data dir",
			flagName:     "db",
			defaultValue: "",
			flagType:     "string",
			persistent:   true,
		},
		{
			name:         "data-dir flag has correct default",
			flagName:     "data-dir",
			defaultValue: "data",
			flagType:     "string",
			persistent:   true,
		},
		{
			name:         "headless flag has correct default",
			flagName:     "headless",
			defaultValue: true,
			flagType:     "bool",
			persistent:   true,
		},
		{
			name:         "no-sandbox flag has correct default",
			flagName:     "no-sandbox",
			defaultValue: false,
			flagType:     "bool",
			persistent:   true,
		},
		{
			name:         "port flag has correct default",
			flagName:     "port",
			defaultValue: 8080,
			flagType:     "int",
		},
		{
			name:         "host flag has correct default",
			flagName:     "host",
			defaultValue: "localhost",
			flagType:     "string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := rootCmd.Flags()
			if tt.persistent {
				flags = rootCmd.PersistentFlags()
			}

			var flag interface{}
			var err error
			switch tt.flagType {
			case "string":
				flag, err = flags.GetString(tt.flagName)
			case "int":
				flag, err = flags.GetInt(tt.flagName)
			case "bool":
				flag, err = flags.GetBool(tt.flagName)
			}

			if err != nil {
				t.Fatalf("Failed to get flag %s: %v", tt.flagName, err)
			}

			if flag != tt.defaultValue {
				t.Errorf("Flag %s: got %v, want %v", tt.flagName, flag, tt.defaultValue)
			}
		})
	}
}

func TestRootCmd_HasLoginSubcommand(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "login" {
			found = true
			break
		}
	}

	if !found {
		t.Error("Expected login subcommand to be registered")
	}
}

func TestRootCmd_UsageOutput(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)

	err := rootCmd.Usage()
	if err != nil {
		t.Errorf("Usage() returned error: %v", err)
	}

	output := buf.String()
	if output == "" {
		t.Error("Expected usage output, got empty string")
	}
}

func TestRootCmd_CommandMetadata(t *testing.T) {
	if rootCmd.Use != "snapmark" {
		t.Errorf("Expected Use to be 'snapmark', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}
}

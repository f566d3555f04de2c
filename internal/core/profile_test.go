package core

import (
	"testing"
)

func TestLoadProfile_Dev(t *testing.T) {
	p, err := LoadProfile("dev")
	if err != nil {
		t.Fatalf("LoadProfile(dev) error: %v", err)
	}
	if p.Name != "dev" {
		t.Errorf("Name = %q, want %q", p.Name, "dev")
	}
	if p.CommandTimeoutSeconds != 300 {
		t.Errorf("CommandTimeoutSeconds = %d, want 300", p.CommandTimeoutSeconds)
	}
	if p.SignInTimeoutSeconds != 120 {
		t.Errorf("SignInTimeoutSeconds = %d, want 120", p.SignInTimeoutSeconds)
	}
	if p.SubmitTimeoutSeconds != 60 {
		t.Errorf("SubmitTimeoutSeconds = %d, want 60", p.SubmitTimeoutSeconds)
	}
	if p.ForbiddenPathPrefixes != ".git/" {
		t.Errorf("ForbiddenPathPrefixes = %q", p.ForbiddenPathPrefixes)
	}
	if p.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", p.LogLevel)
	}
}

func TestLoadProfile_Prod(t *testing.T) {
	p, err := LoadProfile("prod")
	if err != nil {
		t.Fatalf("LoadProfile(prod) error: %v", err)
	}
	if p.Name != "prod" {
		t.Errorf("Name = %q, want %q", p.Name, "prod")
	}
	if p.CommandTimeoutSeconds != 120 {
		t.Errorf("CommandTimeoutSeconds = %d, want 120", p.CommandTimeoutSeconds)
	}
	if p.ForbiddenPathPrefixes != ".git/,.env,secrets/" {
		t.Errorf("ForbiddenPathPrefixes = %q", p.ForbiddenPathPrefixes)
	}
	if p.BrowserHeadless {
		t.Error("BrowserHeadless should be false: sign-in needs a visible window")
	}
	if p.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", p.LogLevel)
	}
}

func TestLoadProfile_EmptyDefaultsToDev(t *testing.T) {
	p, err := LoadProfile("")
	if err != nil {
		t.Fatalf("LoadProfile(\"\") error: %v", err)
	}
	if p.Name != "dev" {
		t.Errorf("Name = %q, want %q", p.Name, "dev")
	}
}

func TestLoadProfile_CaseInsensitive(t *testing.T) {
	p, err := LoadProfile("PROD")
	if err != nil {
		t.Fatalf("LoadProfile(PROD) error: %v", err)
	}
	if p.Name != "prod" {
		t.Errorf("Name = %q, want %q", p.Name, "prod")
	}
}

func TestLoadProfile_UnknownReturnsError(t *testing.T) {
	if _, err := LoadProfile("staging"); err == nil {
		t.Fatal("LoadProfile(staging) should return error")
	}
}

func TestLoadProfile_ReturnsCopy(t *testing.T) {
	p1, _ := LoadProfile("dev")
	p2, _ := LoadProfile("dev")
	p1.CommandTimeoutSeconds = 9999
	if p2.CommandTimeoutSeconds == 9999 {
		t.Error("LoadProfile should return independent copies")
	}
}

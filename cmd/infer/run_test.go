package main

import "testing"

func TestResolvePathJoinsRelativeToBase(t *testing.T) {
	got := resolvePath("/runs/site1", "data.csv")
	if got != "/runs/site1/data.csv" {
		t.Errorf("expected joined path, got %q", got)
	}
}

func TestResolvePathLeavesAbsoluteUnchanged(t *testing.T) {
	got := resolvePath("/runs/site1", "/abs/data.csv")
	if got != "/abs/data.csv" {
		t.Errorf("expected absolute path unchanged, got %q", got)
	}
}

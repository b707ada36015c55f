package main

import (
	"fmt"
	"os"

	"github.com/dspconnect/core/urn"
)

func urnParticipant(raw string) (urn.ParticipantId, error) {
	id, err := urn.ParseParticipantId(raw)
	if err != nil {
		return urn.ParticipantId{}, fmt.Errorf("parsing participant URN %q: %w", raw, err)
	}
	return id, nil
}

func processPtr(raw string) *urn.ProcessId {
	if raw == "" {
		return nil
	}
	id, err := urn.ParseProcessId(raw)
	if err != nil {
		return nil
	}
	return &id
}

func readFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return raw, nil
}

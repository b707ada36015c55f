package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Peer is one statically-known counterparty connector, the way
// estuary-flow/authn's own Config.OIDC is a YAML map of named provider
// configs loaded once at startup rather than managed through an API.
type Peer struct {
	Id              string `yaml:"id"`
	Name            string `yaml:"name"`
	CallbackAddress string `yaml:"callbackAddress"`
}

// PeersFile is the top-level shape of the file --peers-file names: a flat
// list of participants to seed the participant store with before serving.
type PeersFile struct {
	Peers []Peer `yaml:"peers"`
}

// LoadPeersFile parses path as YAML, rejecting unknown fields the same way
// estuary-flow/authn's loadConfig does with its decoder's KnownFields(true).
func LoadPeersFile(path string) (PeersFile, error) {
	in, err := os.Open(path)
	if err != nil {
		return PeersFile{}, fmt.Errorf("config: opening peers file: %w", err)
	}
	defer in.Close()

	var out PeersFile
	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		return PeersFile{}, fmt.Errorf("config: parsing peers file: %w", err)
	}
	return out, nil
}

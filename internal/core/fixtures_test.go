package core

import "stardate-formula/internal/types"

const realChecksum = "929e8f522e3c88297e0f7bd98d185788dc150095d8a67fb43c9ada60a1112c47"

const placeholderChecksum = "1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"

func baseManifest() types.Manifest {
	return types.Manifest{
		APIVersion: types.ManifestAPIVersion,
		Kind:       types.ManifestKindFormula,
		Metadata: types.Metadata{
			Name:        "stardate",
			Description: "Command line interface for interacting with Stardate app's transcription files",
			Homepage:    "https://github.com/deanputney/homebrew-stardate-cli",
		},
		Source: types.Source{
			URL:    "https://github.com/deanputney/homebrew-stardate-cli/releases/download/v0.0.1/stardate-0.0.1.tar.gz",
			SHA256: realChecksum,
		},
		DependsOn: []string{"python@3.10"},
		Install: []types.InstallMapping{
			{From: "stardate.py", To: "stardate", Kind: types.InstallKindBin},
			{From: "test_data/*", To: "test_data", Kind: types.InstallKindPrefix},
		},
		Test: types.TestInvocation{Command: []string{"stardate", "--help"}},
	}
}

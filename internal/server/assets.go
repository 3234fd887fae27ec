package server

import (
	"embed"
	"encoding/json"
	"sync"

	"github.com/syndelabs/synde/internal/api"
)

// Sample payload data served by the mock: a small structure model, a
// rendered prediction table, and the suggestion catalog.
//
//go:embed assets/*
var assets embed.FS

var (
	assetsOnce    sync.Once
	samplePDB     string
	sampleHTML    string
	sampleSuggest []api.Suggestion
)

func loadAssets() {
	assetsOnce.Do(func() {
		pdb, err := assets.ReadFile("assets/demo.pdb")
		if err != nil {
			panic("failed to read embedded demo.pdb: " + err.Error())
		}
		samplePDB = string(pdb)

		html, err := assets.ReadFile("assets/prediction.html")
		if err != nil {
			panic("failed to read embedded prediction.html: " + err.Error())
		}
		sampleHTML = string(html)

		raw, err := assets.ReadFile("assets/suggestions.json")
		if err != nil {
			panic("failed to read embedded suggestions.json: " + err.Error())
		}
		if err := json.Unmarshal(raw, &sampleSuggest); err != nil {
			panic("failed to parse embedded suggestions.json: " + err.Error())
		}
	})
}

// demoPDB returns the embedded sample structure model.
func demoPDB() string {
	loadAssets()
	return samplePDB
}

// predictionHTML returns the embedded rendered prediction table.
func predictionHTML() string {
	loadAssets()
	return sampleHTML
}

// suggestionCatalog returns the canned prompts offered for an empty chat.
func suggestionCatalog() []api.Suggestion {
	loadAssets()
	return append([]api.Suggestion(nil), sampleSuggest...)
}

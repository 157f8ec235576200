// Package search provides full-text symbol lookup over the built-in
// company and crypto directory.
package search

import (
	"fmt"
	"sort"
	"strings"

	"market-lens/models"
	"market-lens/services"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultLimit caps results when the caller passes no limit
const DefaultLimit = 10

// Index is an in-memory bleve index of known symbols
type Index struct {
	index bleve.Index
	size  int
}

// NewIndex builds a memory-only index over symbols
func NewIndex(symbols []services.KnownSymbol) (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := index.NewBatch()
	for _, s := range symbols {
		class := models.AssetClassStock
		if s.Crypto {
			class = models.AssetClassCrypto
		}
		doc := map[string]interface{}{
			"symbol":      s.Symbol,
			"key":         strings.ToLower(s.Symbol),
			"name":        s.Name,
			"asset_class": string(class),
		}
		if err := batch.Index(s.Symbol, doc); err != nil {
			return nil, fmt.Errorf("failed to add %s to batch: %w", s.Symbol, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}

	return &Index{index: index, size: len(symbols)}, nil
}

// NewDefaultIndex indexes the built-in directory
func NewDefaultIndex() (*Index, error) {
	return NewIndex(services.KnownSymbols())
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	// symbols are matched whole or by prefix, never tokenized on "-"
	keyField := bleve.NewKeywordFieldMapping()
	keyField.Store = false
	doc.AddFieldMappingsAt("key", keyField)

	stored := bleve.NewKeywordFieldMapping()
	doc.AddFieldMappingsAt("symbol", stored)
	doc.AddFieldMappingsAt("asset_class", stored)

	name := bleve.NewTextFieldMapping()
	name.Store = true
	doc.AddFieldMappingsAt("name", name)

	indexMapping.DefaultMapping = doc
	return indexMapping
}

// Search ranks symbols against q: exact symbol, symbol prefix, company name
// words, name prefixes and symbol substrings, in decreasing weight.
func (i *Index) Search(q string, limit int) ([]models.SymbolMatch, error) {
	q = strings.ToLower(strings.TrimSpace(strings.NewReplacer("*", "", "?", "").Replace(q)))
	if q == "" {
		return []models.SymbolMatch{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	exact := bleve.NewTermQuery(q)
	exact.SetField("key")
	exact.SetBoost(10.0)

	prefix := bleve.NewPrefixQuery(q)
	prefix.SetField("key")
	prefix.SetBoost(5.0)

	nameMatch := bleve.NewMatchQuery(q)
	nameMatch.SetField("name")
	nameMatch.SetBoost(3.0)

	queries := []query.Query{exact, prefix, nameMatch}
	for _, word := range strings.Fields(q) {
		namePrefix := bleve.NewPrefixQuery(word)
		namePrefix.SetField("name")
		namePrefix.SetBoost(2.0)
		queries = append(queries, namePrefix)
	}

	contains := bleve.NewWildcardQuery("*" + q + "*")
	contains.SetField("key")
	queries = append(queries, contains)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Fields = []string{"symbol", "name", "asset_class"}
	req.Size = i.size

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	out := make([]models.SymbolMatch, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, models.SymbolMatch{
			Symbol:     fieldString(hit.Fields, "symbol"),
			Name:       fieldString(hit.Fields, "name"),
			AssetClass: models.AssetClass(fieldString(hit.Fields, "asset_class")),
			Score:      hit.Score,
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Symbol < out[b].Symbol
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Lookup returns the directory entry for an exact symbol
func (i *Index) Lookup(symbol string) (models.SymbolMatch, bool) {
	term := bleve.NewTermQuery(strings.ToLower(strings.TrimSpace(symbol)))
	term.SetField("key")
	req := bleve.NewSearchRequest(term)
	req.Fields = []string{"symbol", "name", "asset_class"}
	req.Size = 1

	res, err := i.index.Search(req)
	if err != nil || len(res.Hits) == 0 {
		return models.SymbolMatch{}, false
	}
	hit := res.Hits[0]
	return models.SymbolMatch{
		Symbol:     fieldString(hit.Fields, "symbol"),
		Name:       fieldString(hit.Fields, "name"),
		AssetClass: models.AssetClass(fieldString(hit.Fields, "asset_class")),
		Score:      hit.Score,
	}, true
}

// Len returns the number of indexed symbols
func (i *Index) Len() int {
	return i.size
}

func (i *Index) Close() error {
	return i.index.Close()
}

func fieldString(fields map[string]interface{}, key string) string {
	if val, ok := fields[key].(string); ok {
		return val
	}
	return ""
}

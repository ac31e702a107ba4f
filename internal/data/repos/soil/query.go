package soil

import (
	"fmt"
	"strings"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ListParams is the validated form of the soil table query string.
type ListParams struct {
	Page     int
	Limit    int
	Search   string
	Material string
	Location string
}

func (p *ListParams) Normalize() error {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", p.Page)
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", MaxPageLimit, p.Limit)
	}
	p.Search = strings.TrimSpace(p.Search)
	p.Material = strings.TrimSpace(p.Material)
	p.Location = strings.TrimSpace(p.Location)
	return nil
}

func (p ListParams) Offset() int { return (p.Page - 1) * p.Limit }

// TaxonRank selects the column used by taxon searches.
type TaxonRank string

const (
	RankGenus   TaxonRank = "genus"
	RankSpecies TaxonRank = "species"
)

func ParseTaxonRank(raw string) (TaxonRank, error) {
	switch TaxonRank(strings.ToLower(strings.TrimSpace(raw))) {
	case RankGenus:
		return RankGenus, nil
	case RankSpecies:
		return RankSpecies, nil
	}
	return "", fmt.Errorf("unknown taxon rank %q", raw)
}

func (r TaxonRank) column() string {
	if r == RankGenus {
		return "tax_genus"
	}
	return "tax_species"
}

// likePattern escapes LIKE wildcards so user input matches literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

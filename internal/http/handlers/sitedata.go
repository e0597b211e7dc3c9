package handlers

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/valyala/fasthttp"

	"aqgateway/internal/auth"
	"aqgateway/internal/gateway"
)

const (
	defaultSampleRows = 48
	maxSampleRows     = 500
)

// NormalizeSiteID canonicalizes the site identifier used in data file
// names. Upstream site listings report numeric ids as floats, so "7.0"
// and "7" both resolve to "site_7".
func NormalizeSiteID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimSuffix(id, ".0")
	if strings.HasPrefix(id, "site_") {
		return id
	}
	return "site_" + id
}

// SiteData serves the most recent sample rows for one site from the
// configured CSV directory.
func SiteData(dataDir string) gateway.Operation {
	return func(ctx *fasthttp.RequestCtx, _ *auth.Principal) (map[string]any, error) {
		rawID, _ := ctx.UserValue("id").(string)
		if rawID == "" {
			return nil, fmt.Errorf("%w: site id required", gateway.ErrBadRequest)
		}
		siteID := NormalizeSiteID(rawID)

		if dataDir == "" {
			return nil, fmt.Errorf("%w: site data not available", gateway.ErrNotFound)
		}

		limit := ctx.QueryArgs().GetUintOrZero("limit")
		if limit <= 0 {
			limit = defaultSampleRows
		}
		if limit > maxSampleRows {
			limit = maxSampleRows
		}

		rows, err := readSiteCSV(filepath.Join(dataDir, siteID+".csv"), limit)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: no data for %s", gateway.ErrNotFound, siteID)
			}
			return nil, err
		}

		return map[string]any{
			"site_id": siteID,
			"rows":    rows,
			"count":   len(rows),
		}, nil
	}
}

// readSiteCSV returns the last limit data rows keyed by the header row.
func readSiteCSV(path string, limit int) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(records) < 2 {
		return []map[string]string{}, nil
	}

	header := records[0]
	data := records[1:]
	if len(data) > limit {
		data = data[len(data)-limit:]
	}

	rows := make([]map[string]string, 0, len(data))
	for _, rec := range data {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

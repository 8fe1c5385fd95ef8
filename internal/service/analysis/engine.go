// Package analysis turns sieve-analysis submissions into validated reports.
// Everything here is pure and safe for concurrent use.
package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mamadbah2/silicalab/internal/domain/models"
)

// BuildReport validates a submission and computes per-line products, the total
// quantity and the AFS fineness number. The returned report has no identity yet.
func BuildReport(sub models.Submission) (models.Report, error) {
	verr := &models.ValidationError{}

	required := []struct {
		field string
		value string
	}{
		{"company_name", sub.CompanyName},
		{"report_date", sub.ReportDate},
		{"truck_no", sub.TruckNo},
		{"material_type", sub.MaterialType},
		{"sieve_reference", sub.SieveReference},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			verr.Add(r.field, "is required")
		}
	}

	var reportDate time.Time
	if !verr.Has("report_date") {
		parsed, err := time.Parse(models.DateLayout, strings.TrimSpace(sub.ReportDate))
		if err != nil {
			verr.Add("report_date", "must be a calendar date (YYYY-MM-DD)")
		}
		reportDate = parsed
	}

	if len(sub.Sieves) == 0 {
		verr.Add("sieves", "at least one sieve is required")
	}

	lines := make([]models.SieveLine, 0, len(sub.Sieves))
	for i, entry := range sub.Sieves {
		prefix := fmt.Sprintf("sieves[%d]", i)
		if strings.TrimSpace(entry.MeshSize) == "" {
			verr.Add(prefix+".mesh_size", "is required")
		}
		aperture := checkMeasurement(verr, prefix+".aperture", entry.Aperture)
		weight := checkMeasurement(verr, prefix+".weight", entry.Weight)
		factor := checkMeasurement(verr, prefix+".multiplying_factor", entry.MultiplyingFactor)

		product := weight * factor
		if !isFinite(product) {
			verr.Add(prefix+".product", "weight times multiplying factor is out of range")
		}

		lines = append(lines, models.SieveLine{
			MeshSize:          strings.TrimSpace(entry.MeshSize),
			Aperture:          aperture,
			Weight:            weight,
			MultiplyingFactor: factor,
			Product:           product,
		})
	}

	if err := verr.OrNil(); err != nil {
		return models.Report{}, err
	}

	var totalQuantity, totalProduct float64
	for _, line := range lines {
		totalQuantity += line.Weight
		totalProduct += line.Product
	}

	if totalQuantity == 0 {
		return models.Report{}, models.ErrDivisionByZero
	}

	afs := Round2(totalProduct / totalQuantity)
	if !isFinite(totalQuantity) || !isFinite(totalProduct) || !isFinite(afs) {
		verr.Add("sieves", "totals are out of range")
		return models.Report{}, verr
	}

	return models.Report{
		CompanyName:    strings.TrimSpace(sub.CompanyName),
		ReportDate:     reportDate,
		TruckNo:        strings.TrimSpace(sub.TruckNo),
		DryBedNo:       strings.TrimSpace(sub.DryBedNo),
		MaterialType:   strings.TrimSpace(sub.MaterialType),
		SieveReference: strings.TrimSpace(sub.SieveReference),
		Sieves:         lines,
		TotalQuantity:  totalQuantity,
		TotalAFS:       afs,
	}, nil
}

// Round2 rounds to two decimals, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkMeasurement(verr *models.ValidationError, field string, value *float64) float64 {
	switch {
	case value == nil:
		verr.Add(field, "is required")
		return 0
	case !isFinite(*value):
		verr.Add(field, "must be a finite number")
		return 0
	case *value < 0:
		verr.Add(field, "must not be negative")
		return 0
	}
	return *value
}

// FromForm zips the per-column lists of a form post into a Submission. The four
// lists must have the same length; nothing is parsed otherwise.
func FromForm(form models.FormSubmission) (models.Submission, error) {
	sub := models.Submission{
		CompanyName:    form.CompanyName,
		ReportDate:     form.ReportDate,
		TruckNo:        form.TruckNo,
		DryBedNo:       form.DryBedNo,
		MaterialType:   form.MaterialType,
		SieveReference: form.SieveReference,
	}

	n := len(form.MeshSize)
	if len(form.Aperture) != n || len(form.Weight) != n || len(form.MultiplyingFactor) != n {
		verr := &models.ValidationError{}
		verr.Add("sieves", "column lengths differ: mesh_size=%d aperture=%d weight=%d multiplying_factor=%d",
			n, len(form.Aperture), len(form.Weight), len(form.MultiplyingFactor))
		return models.Submission{}, verr
	}

	verr := &models.ValidationError{}
	sub.Sieves = make([]models.SieveEntry, 0, n)
	for i := 0; i < n; i++ {
		prefix := fmt.Sprintf("sieves[%d]", i)
		sub.Sieves = append(sub.Sieves, models.SieveEntry{
			MeshSize:          form.MeshSize[i],
			Aperture:          parseNumber(verr, prefix+".aperture", form.Aperture[i]),
			Weight:            parseNumber(verr, prefix+".weight", form.Weight[i]),
			MultiplyingFactor: parseNumber(verr, prefix+".multiplying_factor", form.MultiplyingFactor[i]),
		})
	}

	if err := verr.OrNil(); err != nil {
		return models.Submission{}, err
	}
	return sub, nil
}

// parseNumber returns nil for a blank value so BuildReport reports it as missing.
func parseNumber(verr *models.ValidationError, field, raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		verr.Add(field, "must be a number")
		return nil
	}
	return &v
}

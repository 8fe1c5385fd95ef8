package models

import "time"

// DateLayout is the calendar date format used for report dates on every boundary.
const DateLayout = "2006-01-02"

// SieveLine is one measured mesh of a sieve stack.
type SieveLine struct {
	ID                int64   `bson:"-" json:"id,omitempty"`
	MeshSize          string  `bson:"mesh_size" json:"mesh_size"`
	Aperture          float64 `bson:"aperture" json:"aperture"`
	Weight            float64 `bson:"weight" json:"weight"`
	MultiplyingFactor float64 `bson:"multiplying_factor" json:"multiplying_factor"`
	Product           float64 `bson:"product" json:"product"` // Weight * MultiplyingFactor
}

// Report is a sieve-analysis test report together with its derived totals.
// ID and CreatedAt are assigned by the store on save.
type Report struct {
	ID             int64       `bson:"_id" json:"id"`
	CompanyName    string      `bson:"company_name" json:"company_name"`
	ReportDate     time.Time   `bson:"report_date" json:"report_date"`
	TruckNo        string      `bson:"truck_no" json:"truck_no"`
	DryBedNo       string      `bson:"dry_bed_no" json:"dry_bed_no"`
	MaterialType   string      `bson:"material_type" json:"material_type"`
	SieveReference string      `bson:"sieve_reference" json:"sieve_reference"`
	Sieves         []SieveLine `bson:"sieves" json:"sieves"`
	TotalQuantity  float64     `bson:"total_quantity" json:"total_quantity"`
	TotalAFS       float64     `bson:"total_afs" json:"total_afs"`
	CreatedAt      time.Time   `bson:"created_at" json:"created_at"`
}

// Submission is the raw input for a new report. Numeric sieve values are pointers
// so that a missing value can be told apart from zero.
type Submission struct {
	CompanyName    string       `json:"company_name"`
	ReportDate     string       `json:"report_date"`
	TruckNo        string       `json:"truck_no"`
	DryBedNo       string       `json:"dry_bed_no"`
	MaterialType   string       `json:"material_type"`
	SieveReference string       `json:"sieve_reference"`
	Sieves         []SieveEntry `json:"sieves"`
}

// SieveEntry is one submitted sieve measurement.
type SieveEntry struct {
	MeshSize          string   `json:"mesh_size"`
	Aperture          *float64 `json:"aperture"`
	Weight            *float64 `json:"weight"`
	MultiplyingFactor *float64 `json:"multiplying_factor"`
}

// FormSubmission mirrors the lab form, where every sieve column arrives as its own list.
type FormSubmission struct {
	CompanyName       string
	ReportDate        string
	TruckNo           string
	DryBedNo          string
	MaterialType      string
	SieveReference    string
	MeshSize          []string
	Aperture          []string
	Weight            []string
	MultiplyingFactor []string
}

// Digest summarizes the reports created within a period.
type Digest struct {
	Since         time.Time `json:"since"`
	Until         time.Time `json:"until"`
	Reports       int       `json:"reports"`
	TotalQuantity float64   `json:"total_quantity"`
	MeanAFS       float64   `json:"mean_afs"`
}

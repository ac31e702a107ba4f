package soil

import (
	"time"

	"github.com/google/uuid"
)

// Soil is a soil sample record. Pipeline runs create a synthetic one per run
// ("Pipeline_<runId>") as the anchor for parsed samples and alpha metrics.
type Soil struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SampleName     string     `gorm:"column:sample_name;not null;index" json:"sampleName"`
	OwnerID        *uuid.UUID `gorm:"type:uuid;column:owner_id;index" json:"ownerId,omitempty"`
	RunID          *uuid.UUID `gorm:"type:uuid;column:run_id;index" json:"runId,omitempty"`
	CollectionDate *time.Time `gorm:"column:collection_date" json:"collectionDate,omitempty"`
	SoilDepth      *string    `gorm:"column:soil_depth" json:"soilDepth,omitempty"`
	Elevation      *float64   `gorm:"column:elev" json:"elevation,omitempty"`
	EnvBroadScale  *string    `gorm:"column:env_broad_scale" json:"envBroadScale,omitempty"`
	EnvLocalScale  *string    `gorm:"column:env_local_scale" json:"envLocalScale,omitempty"`
	EnvMedium      *string    `gorm:"column:env_medium;index" json:"envMedium,omitempty"`
	GeoLocName     *string    `gorm:"column:geo_loc_name;index" json:"geoLocName,omitempty"`
	Latitude       *float64   `gorm:"column:latitude;index" json:"latitude,omitempty"`
	Longitude      *float64   `gorm:"column:longitude;index" json:"longitude,omitempty"`
	PH             *float64   `gorm:"column:ph" json:"ph,omitempty"`
	SoilType       *string    `gorm:"column:soil_type;index" json:"soilType,omitempty"`
	TotOrgCarb     *float64   `gorm:"column:tot_org_carb" json:"totOrgCarb,omitempty"`
	TotNitro       *float64   `gorm:"column:tot_nitro" json:"totNitro,omitempty"`
	EnzymeBG       *float64   `gorm:"column:enzyme_beta_glucosidase" json:"enzymeBetaGlucosidase,omitempty"`
	EnzymeAS       *float64   `gorm:"column:enzyme_arylsulfatase" json:"enzymeArylsulfatase,omitempty"`
	EnzymeAP       *float64   `gorm:"column:enzyme_acid_phosphatase" json:"enzymeAcidPhosphatase,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
}

func (Soil) TableName() string { return "soils" }

// Coordinates returns the typed point when both axes are stored.
func (s *Soil) Coordinates() *GeoPoint {
	if s == nil || s.Latitude == nil || s.Longitude == nil {
		return nil
	}
	return &GeoPoint{Latitude: *s.Latitude, Longitude: *s.Longitude}
}

// Sample is one taxonomic hit (an amplicon sequence variant) found in a soil.
type Sample struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SoilID    uuid.UUID `gorm:"type:uuid;not null;index;column:soil_id" json:"soilId"`
	Sequence  string    `gorm:"column:sequence;type:text;not null;index" json:"sequence"`
	Kingdom   *string   `gorm:"column:tax_kingdom" json:"kingdom"`
	Phylum    *string   `gorm:"column:tax_phylum" json:"phylum"`
	Class     *string   `gorm:"column:tax_class" json:"class"`
	Order     *string   `gorm:"column:tax_order" json:"order"`
	Family    *string   `gorm:"column:tax_family" json:"family"`
	Genus     *string   `gorm:"column:tax_genus;index" json:"genus"`
	Species   *string   `gorm:"column:tax_species;index" json:"species"`
	OTUCounts OTUCounts `gorm:"column:otu_counts;type:jsonb;serializer:json" json:"otuCounts"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (Sample) TableName() string { return "samples" }

// OTUCounts maps an OTU table column (a sequenced sample) to its read count.
type OTUCounts map[string]float64

// AlphaDiversity is one row of alpha_diversity_metrics.csv.
type AlphaDiversity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SoilID    uuid.UUID `gorm:"type:uuid;not null;index;column:soil_id" json:"soilId"`
	Label     string    `gorm:"column:label" json:"label"`
	Observed  float64   `gorm:"column:observed" json:"observed"`
	Shannon   float64   `gorm:"column:shannon" json:"shannon"`
	Simpson   float64   `gorm:"column:simpson" json:"simpson"`
	Chao1     float64   `gorm:"column:chao1" json:"chao1"`
	Goods     float64   `gorm:"column:goods" json:"goods"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (AlphaDiversity) TableName() string { return "alpha_diversity" }

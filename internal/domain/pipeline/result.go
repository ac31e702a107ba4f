package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Result holds pointers to the recognized output artifacts of a run.
// Missing artifacts stay nil.
type Result struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RunID              uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex;column:run_id" json:"runId"`
	SoilID             *uuid.UUID `gorm:"type:uuid;column:soil_id" json:"soilId"`
	AlphaDiversityFile *string    `gorm:"column:alpha_diversity_file" json:"alphaDiversityFile"`
	OTUTableFile       *string    `gorm:"column:otu_table_file" json:"otuTableFile"`
	TaxonomyFile       *string    `gorm:"column:taxonomy_file" json:"taxonomyFile"`
	MetadataFile       *string    `gorm:"column:metadata_file" json:"metadataFile"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (Result) TableName() string { return "pipeline_results" }

package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every struct that is a table in the schema.
var DatabaseModels = []interface{}{
	&BenchmarkInfo{},
	&Run{},
	&Failure{},
	&Vote{},
	&ContactPoint{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// BenchmarkInfo describes the instance that wrote the database.
type BenchmarkInfo struct {
	gorm.Model
	Version     string `json:"version" gorm:"size:64"`
	Description string `json:"description" gorm:"size:255"`
}

func (*BenchmarkInfo) TableName() string {
	return "benchmark_infos"
}

////////////////////////
// RUN MODELS
////////////////////////

// Run is one agreement sweep between two models.
type Run struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	RunUUID   string         `json:"runUuid" gorm:"size:36;uniqueIndex:idx_run_uuid"`
	Model1    string         `json:"model1" gorm:"size:128"`
	Model2    string         `json:"model2" gorm:"size:128"`
	Engines   datatypes.JSON `json:"engines" gorm:"default:'[]'"`
	Worlds    datatypes.JSON `json:"worlds" gorm:"default:'[]'"`
	Params    datatypes.JSON `json:"params" gorm:"default:'{}'"`
	StartTime time.Time      `json:"startTime" gorm:"type:timestamptz;"`
	EndTime   sql.NullTime   `json:"endTime" gorm:"type:timestamptz;default:NULL"`

	// filled in when the run ends
	Cells      int   `json:"cells"`
	Evaluated  int   `json:"evaluated"`
	Skipped    int   `json:"skipped"`
	Failures   int   `json:"failures"`
	DurationMs int64 `json:"durationMs"`
}

func (*Run) TableName() string {
	return "runs"
}

// Failure is a grid cell where the engines disagreed.
type Failure struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt time.Time `json:"createdAt"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;"`
	RunID     uint      `json:"runId" gorm:"index:idx_failure_run_id"`
	Run       Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`

	Number        int            `json:"number"`
	CellIndex     int            `json:"cellIndex" gorm:"index:idx_failure_cell"`
	Position      geom.Point     `json:"position"` // probe position of model 2
	Positive      float64        `json:"positive"`
	Negative      float64        `json:"negative"`
	MaxDepth      float64        `json:"maxDepth"`
	SnapshotFiles datatypes.JSON `json:"snapshotFiles" gorm:"default:'[]'"`

	Votes []Vote `json:"votes" gorm:"foreignkey:FailureID;"`
}

func (*Failure) TableName() string {
	return "failures"
}

// Vote is one world's answer at a failed cell.
type Vote struct {
	ID        uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	FailureID uint    `json:"failureId" gorm:"index:idx_vote_failure_id"`
	World     string  `json:"world" gorm:"size:128"`
	Engine    string  `json:"engine" gorm:"size:32"`
	Colliding bool    `json:"colliding" gorm:"default:false"`
	MaxDepth  float64 `json:"maxDepth"`

	Contacts []ContactPoint `json:"contacts" gorm:"foreignkey:VoteID;"`
}

func (*Vote) TableName() string {
	return "votes"
}

// ContactPoint is a single contact reported by a world.
type ContactPoint struct {
	ID       uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	VoteID   uint       `json:"voteId" gorm:"index:idx_contact_vote_id"`
	Model1   string     `json:"model1" gorm:"size:128"`
	Model2   string     `json:"model2" gorm:"size:128"`
	Position geom.Point `json:"position"`
	Normal   geom.Point `json:"normal"`
	Depth    float64    `json:"depth"`
}

func (*ContactPoint) TableName() string {
	return "contact_points"
}

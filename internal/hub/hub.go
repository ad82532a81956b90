// Package hub provides the shared pieces of the data hub pipeline: stage
// identifiers, the ingestion run audit log, and schema migrations.
package hub

// Stage identifies one tier of the pipeline. Stages run strictly in order;
// each consumes only the completed output of its predecessor.
type Stage string

const (
	StageIngest      Stage = "ingest"
	StageExtract     Stage = "extract"
	StageConsolidate Stage = "consolidate"
	StageAggregate   Stage = "aggregate"
)

// Stages lists all pipeline stages in execution order.
var Stages = []Stage{StageIngest, StageExtract, StageConsolidate, StageAggregate}

// Entity type names shared across tiers.
const (
	EntityPerson     = "person"
	EntityDepartment = "department"
	EntityGroup      = "group"
	EntityComputer   = "computer"
	EntityAward      = "award"
	EntityLab        = "lab"
)

// Source system names.
const (
	SourceTDX        = "tdx"
	SourceHR         = "hr"
	SourceLDAP       = "ldap"
	SourceMCommunity = "mcommunity"
)

package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching and run tracking.
	DatabaseBackend string

	// ModelFamily represents the functional form of a regression model.
	ModelFamily string

	// PlotScale represents the y-axis scale hint for plot consumers.
	PlotScale string

	// Stage names the pipeline step in which a failure happened.
	Stage string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All model families supported.
const (
	PolyFamily     ModelFamily = "poly"
	ExpFamily      ModelFamily = "exp"
	LogisticFamily ModelFamily = "logistic"
)

// All plot scales supported.
const (
	LinScale PlotScale = "lin"
	LogScale PlotScale = "log"
)

// Pipeline stages reported on failures.
const (
	DataStage       Stage = "data"
	ModelStage      Stage = "model"
	SamplingStage   Stage = "sampling"
	EvaluationStage Stage = "evaluation"
)

// Result table keys.
const (
	KeyCorr             = "corr"
	KeyMeanDiff         = "mean_diff"
	KeyNormOfDiff       = "norm_of_diff"
	KeyMaxPosDiff       = "max_pos_diff"
	KeyMaxNegDiff       = "max_neg_diff"
	KeyPrediction       = "prediction"
	KeyTargetFit        = "target_fit"
	KeyPredictionCILow  = "prediction_CI_low"
	KeyPredictionCIHigh = "prediction_CI_high"
)

// SigmaName is the reserved name of the observation noise parameter.
const SigmaName = "sigma"

// WorldCountry is the canonical label for the all-countries aggregate.
const WorldCountry = "World"

// DiagnosticKeys lists the rows present in every result table, in order.
var DiagnosticKeys = []string{KeyCorr, KeyMeanDiff, KeyNormOfDiff, KeyMaxPosDiff, KeyMaxNegDiff}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// DefaultExperimentModels is the model sweep used by the experiment driver.
var DefaultExperimentModels = []string{"poly1", "poly2", "poly3", "logis", "sigmoid", "scurve"}

// IsWorld reports whether a country selector means the all-countries aggregate.
func IsWorld(country string) bool {
	switch country {
	case "", "World", "world", "all", "All":
		return true
	}
	return false
}

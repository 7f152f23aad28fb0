package logger

// Common field names for structured logging.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldTransactionID = "transaction_id"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatus        = "status"
	FieldDuration      = "duration"
	FieldCategory      = "category"
	FieldObject        = "object"
)

// Component names.
const (
	ComponentAPI          = "api"
	ComponentCLI          = "cli"
	ComponentExtractor    = "extractor"
	ComponentCategorizer  = "categorizer"
	ComponentPipeline     = "pipeline"
	ComponentStore        = "store"
	ComponentBlobs        = "blobs"
	ComponentEvents       = "events"
	ComponentTransactions = "transactions"
)

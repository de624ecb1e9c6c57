package log

// Common field names for structured logging.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status_code"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldUserID    = "user_id"
	FieldAccountID = "account_id"
	FieldBudgetID  = "budget_id"
	FieldExpenseID = "expense_id"
	FieldGoalID    = "goal_id"
	FieldAmount    = "amount"
	FieldBalance   = "balance"
	FieldPeriod    = "period"
	FieldQueue     = "queue"
	FieldExchange  = "exchange"
)

// Components defines standard component names.
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentStorage    = "storage"
	ComponentAllocator  = "allocator"
	ComponentAggregator = "aggregator"
	ComponentNotifier   = "notifier"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentRPC        = "rpc"
)

// Operations defines standard operation names.
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpDelete    = "delete"
	OpList      = "list"
	OpAttach    = "attach"
	OpDetach    = "detach"
	OpRecompute = "recompute"
	OpNotify    = "notify"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)

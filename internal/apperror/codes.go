package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError   Code = "CONFIGURATION_ERROR"
	CodeConfigurationMissing Code = "CONFIGURATION_MISSING"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"
	CodeDataUnavailable      Code = "DATA_UNAVAILABLE"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Keeper-specific error codes
const (
	// Blockchain/Ethereum errors
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumSubscribeFailed  Code = "ETHEREUM_SUBSCRIBE_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeBlockNotFound            Code = "BLOCK_NOT_FOUND"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeTransactionFailed        Code = "TRANSACTION_FAILED"
	CodeTransactionPending       Code = "TRANSACTION_PENDING"
	CodeInvalidKey               Code = "INVALID_KEY"

	// DEX (Uniswap) errors
	CodeUniswapQuoteFailed Code = "UNISWAP_QUOTE_FAILED"
	CodeInvalidQuote       Code = "INVALID_QUOTE"
	CodeInvalidPath        Code = "INVALID_PATH"
	CodeContractCallFailed Code = "CONTRACT_CALL_FAILED"

	// Harvest state and strategy errors
	CodeStateCorrupt        Code = "STATE_CORRUPT"
	CodeStateWriteFailed    Code = "STATE_WRITE_FAILED"
	CodeUnsupportedStrategy Code = "UNSUPPORTED_STRATEGY"
	CodeLedgerError         Code = "LEDGER_ERROR"
	CodeNothingToKeep       Code = "NOTHING_TO_KEEP"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)

package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError:   "Configuration error",
	CodeConfigurationMissing: "Required configuration is missing",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",
	CodeDataUnavailable:      "Required data is unavailable",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Blockchain/Ethereum errors
	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumSubscribeFailed:  "Failed to subscribe to Ethereum events",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeBlockNotFound:            "Block not found",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeTransactionFailed:        "Transaction failed",
	CodeTransactionPending:       "Previous transaction is not mined yet",
	CodeInvalidKey:               "Invalid signing key",

	// DEX (Uniswap) errors
	CodeUniswapQuoteFailed: "Failed to get Uniswap quote",
	CodeInvalidQuote:       "Invalid quote data",
	CodeInvalidPath:        "Invalid swap path",
	CodeContractCallFailed: "Smart contract call failed",

	// Harvest state and strategy errors
	CodeStateCorrupt:        "Harvest state file is corrupt",
	CodeStateWriteFailed:    "Failed to persist harvest state",
	CodeUnsupportedStrategy: "Unsupported strategy kind",
	CodeLedgerError:         "Harvest ledger error",
	CodeNothingToKeep:       "No strategy is managed by this keeper",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}

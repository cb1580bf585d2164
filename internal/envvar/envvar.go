package envvar

const (
	// DeepvoiceEnv is the environment variable used to determine the environment
	DeepvoiceEnv = "DEEPVOICE_ENV"

	// DeepvoiceConfig is the environment variable used to override the config file path
	DeepvoiceConfig = "DEEPVOICE_CONFIG"

	// DeepvoiceServerHTTPPort is the environment variable used to determine the HTTP port
	DeepvoiceServerHTTPPort = "DEEPVOICE_SERVER_HTTP_PORT"

	// DeepvoiceServerGRPCPort is the environment variable used to determine the gRPC port
	DeepvoiceServerGRPCPort = "DEEPVOICE_SERVER_GRPC_PORT"

	// DeepvoiceModelsPath is the environment variable used to override the models directory
	DeepvoiceModelsPath = "DEEPVOICE_MODELS_PATH"

	// OnnxRuntimeLib points at the onnxruntime shared library
	OnnxRuntimeLib = "ONNXRUNTIME_LIB"
)

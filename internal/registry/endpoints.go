package registry

const (
	// 0x swap aggregator API. Every request carries the API key and
	// version headers below.
	ZeroExBaseURL       = "https://api.0x.org"
	ZeroExAPIKeyHeader  = "0x-api-key"
	ZeroExVersionHeader = "0x-version"
	ZeroExAPIVersion    = "v2"

	ZeroExSourcesPath = "/swap/v1/sources"
	ZeroExPricePath   = "/swap/permit2/price"
	ZeroExQuotePath   = "/swap/permit2/quote"
)

package jobs

import "github.com/kiranshivaraju/photon/pkg/models"

type verdict int

const (
	// verdictPending: neither success nor failure. Not an error.
	verdictPending verdict = iota
	verdictSuccess
	// verdictInferredSuccess: no success flag, but a usable result URL and
	// no failure signal. Some callback variants only ever deliver the URL.
	verdictInferredSuccess
	// verdictSuccessNoURL: the provider says success but the payload holds
	// no URL, so the status endpoint must be asked.
	verdictSuccessNoURL
	verdictFailed
)

func (v verdict) String() string {
	switch v {
	case verdictSuccess:
		return "success"
	case verdictInferredSuccess:
		return "inferred_success"
	case verdictSuccessNoURL:
		return "success_without_url"
	case verdictFailed:
		return "failed"
	}
	return "pending"
}

type classification struct {
	verdict      verdict
	resultURL    string
	errorCode    string
	errorMessage string
}

// classify reads a callback or status payload. A failure signal always wins
// over any success signal in the same payload.
func classify(adapter models.ProviderAdapter, body []byte) classification {
	if adapter.CheckFailed(body) {
		code, msg := adapter.ExtractError(body)
		return classification{verdict: verdictFailed, errorCode: code, errorMessage: msg}
	}

	url, hasURL := adapter.ExtractResultURL(body)
	if adapter.CheckSuccess(body) {
		if hasURL {
			return classification{verdict: verdictSuccess, resultURL: url}
		}
		return classification{verdict: verdictSuccessNoURL}
	}
	if hasURL {
		return inferredSuccess(url)
	}
	return classification{verdict: verdictPending}
}

func inferredSuccess(url string) classification {
	return classification{verdict: verdictInferredSuccess, resultURL: url}
}

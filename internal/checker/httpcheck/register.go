package httpcheck

import "github.com/khanhnv2901/seca-assert/internal/application/assert"

// Register adds every HTTP check to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, IsHeaderHSTSMissing)
	assert.MustRegister(r, IsHeaderCSPMissing)
	assert.MustRegister(r, IsHeaderXFrameOptionsMissing)
	assert.MustRegister(r, IsHeaderXContentTypeOptionsMissing)
	assert.MustRegister(r, IsSecurityGradeLow)
	assert.MustRegister(r, IsVersionVisible)
	assert.MustRegister(r, HasTraceMethod)
	assert.MustRegister(r, HasText)
	assert.MustRegister(r, HasNotText)
	assert.MustRegister(r, HasDirectoryListing)
	assert.MustRegister(r, HasInsecureCookies)
	assert.MustRegister(r, HasInsecureCORS)
	assert.MustRegister(r, IsNotHTTPSRedirected)
	assert.MustRegister(r, AcceptsDeepGraphQLQueries)
}

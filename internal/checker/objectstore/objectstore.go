// Package objectstore audits S3-compatible buckets for public exposure,
// missing versioning and missing default encryption.
package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

const (
	sourcePolicy     = "S3/BucketPolicy"
	sourceVersioning = "S3/Versioning"
	sourceEncryption = "S3/Encryption"
	sourceListing    = "S3/Listing"
	defaultRegion    = "us-east-1"

	codeNoSuchBucket       = "NoSuchBucket"
	codeNoSuchBucketPolicy = "NoSuchBucketPolicy"
	codeNoEncryption       = "ServerSideEncryptionConfigurationNotFoundError"
	codeAccessDenied       = "AccessDenied"
)

var errorChecks = append([]error{sharedErrors.ErrAuthentication}, assert.NetworkErrors...)

// Params identifies the bucket. Empty keys mean anonymous access.
type Params struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Bucket    string        `mapstructure:"bucket"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	Region    string        `mapstructure:"region"`
	Secure    bool          `mapstructure:"secure"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func (p Params) where() string {
	return p.Endpoint + "/" + p.Bucket
}

func (p Params) client(anonymous bool) (*minio.Client, error) {
	if strings.TrimSpace(p.Endpoint) == "" || strings.TrimSpace(p.Bucket) == "" {
		return nil, fmt.Errorf("%w: endpoint and bucket are required", sharedErrors.ErrInvalidParameter)
	}
	accessKey, secretKey := p.AccessKey, p.SecretKey
	if anonymous {
		accessKey, secretKey = "", ""
	}
	region := p.Region
	if region == "" {
		region = defaultRegion
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = consts.DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	client, err := minio.New(p.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       p.Secure,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrInvalidParameter, err)
	}
	return client, nil
}

// classify maps S3 error codes onto the shared sentinels.
func classify(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case codeNoSuchBucket:
		return fmt.Errorf("%w: %v", sharedErrors.ErrInvalidParameter, err)
	case codeAccessDenied:
		return fmt.Errorf("%w: %v", sharedErrors.ErrAuthentication, err)
	}
	return err
}

// IsBucketPublic reads the bucket policy and flags Allow statements granted
// to every principal.
var IsBucketPublic = assert.API(assert.Meta{
	Name:        "cloud.s3.is_bucket_public",
	Description: "OPEN when the bucket policy grants access to anonymous principals.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	client, err := p.client(false)
	if err != nil {
		return check.Outcome{}, err
	}
	policy, err := client.GetBucketPolicy(ctx, p.Bucket)
	if err != nil && minio.ToErrorResponse(err).Code != codeNoSuchBucketPolicy {
		return check.Outcome{}, classify(err)
	}
	if policy == "" {
		return check.Closed("Bucket has no policy",
			check.NewUnit(p.where(), []string{"no bucket policy"}, check.WithSource(sourcePolicy))), nil
	}

	grants, err := publicGrants(policy)
	if err != nil {
		return check.Outcome{}, err
	}
	if len(grants) > 0 {
		return check.Open("Bucket policy allows public access",
			check.NewUnit(p.where(), grants, check.WithSource(sourcePolicy))), nil
	}
	return check.Closed("Bucket policy does not allow public access",
		check.NewUnit(p.where(), []string{"no public statements"}, check.WithSource(sourcePolicy))), nil
}, errorChecks...))

type policyDocument struct {
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string          `json:"Sid"`
	Effect    string          `json:"Effect"`
	Principal json.RawMessage `json:"Principal"`
	Action    json.RawMessage `json:"Action"`
	Condition json.RawMessage `json:"Condition"`
}

// publicGrants returns a description of each unconditional Allow statement
// whose principal is "*".
func publicGrants(policy string) ([]string, error) {
	var doc policyDocument
	if err := json.Unmarshal([]byte(policy), &doc); err != nil {
		return nil, fmt.Errorf("parse bucket policy: %w", err)
	}
	var grants []string
	for i, st := range doc.Statement {
		if !strings.EqualFold(st.Effect, "Allow") || len(st.Condition) > 0 || !isWildcardPrincipal(st.Principal) {
			continue
		}
		name := st.Sid
		if name == "" {
			name = fmt.Sprintf("statement %d", i)
		}
		grants = append(grants, fmt.Sprintf("%s: %s", name, strings.Join(stringOrList(st.Action), ", ")))
	}
	return grants, nil
}

func isWildcardPrincipal(raw json.RawMessage) bool {
	for _, v := range stringOrList(raw) {
		if v == "*" {
			return true
		}
	}
	var byType map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byType); err != nil {
		return false
	}
	for _, v := range stringOrList(byType["AWS"]) {
		if v == "*" {
			return true
		}
	}
	return false
}

// stringOrList decodes the IAM "string or array of strings" shape.
func stringOrList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

// IsVersioningDisabled reads the bucket versioning state.
var IsVersioningDisabled = assert.API(assert.Meta{
	Name:        "cloud.s3.is_versioning_disabled",
	Description: "OPEN when object versioning is not enabled on the bucket.",
	Risk:        check.RiskLow,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	client, err := p.client(false)
	if err != nil {
		return check.Outcome{}, err
	}
	cfg, err := client.GetBucketVersioning(ctx, p.Bucket)
	if err != nil {
		return check.Outcome{}, classify(err)
	}
	status := cfg.Status
	if status == "" {
		status = "Unversioned"
	}
	unit := check.NewUnit(p.where(), []string{"versioning: " + status}, check.WithSource(sourceVersioning))
	if cfg.Enabled() {
		return check.Closed("Bucket versioning is enabled", unit), nil
	}
	return check.Open("Bucket versioning is disabled", unit), nil
}, errorChecks...))

// IsEncryptionDisabled reads the default server-side encryption rule.
var IsEncryptionDisabled = assert.API(assert.Meta{
	Name:        "cloud.s3.is_encryption_disabled",
	Description: "OPEN when the bucket has no default server-side encryption.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	client, err := p.client(false)
	if err != nil {
		return check.Outcome{}, err
	}
	cfg, err := client.GetBucketEncryption(ctx, p.Bucket)
	if err != nil {
		if minio.ToErrorResponse(err).Code == codeNoEncryption {
			return check.Open("Bucket default encryption is disabled",
				check.NewUnit(p.where(), []string{"no encryption configuration"}, check.WithSource(sourceEncryption))), nil
		}
		return check.Outcome{}, classify(err)
	}
	var algorithms []string
	for _, rule := range cfg.Rules {
		if alg := rule.Apply.SSEAlgorithm; alg != "" {
			algorithms = append(algorithms, "algorithm: "+alg)
		}
	}
	if len(algorithms) == 0 {
		return check.Open("Bucket default encryption is disabled",
			check.NewUnit(p.where(), []string{"empty encryption configuration"}, check.WithSource(sourceEncryption))), nil
	}
	return check.Closed("Bucket default encryption is enabled",
		check.NewUnit(p.where(), algorithms, check.WithSource(sourceEncryption))), nil
}, errorChecks...))

// AllowsAnonymousListing lists the bucket without credentials.
var AllowsAnonymousListing = assert.API(assert.Meta{
	Name:        "cloud.s3.allows_anonymous_listing",
	Description: "OPEN when anyone can list the bucket contents without credentials.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	client, err := p.client(true)
	if err != nil {
		return check.Outcome{}, err
	}
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var keys []string
	for obj := range client.ListObjects(listCtx, p.Bucket, minio.ListObjectsOptions{MaxKeys: 1}) {
		if obj.Err != nil {
			if minio.ToErrorResponse(obj.Err).Code == codeAccessDenied {
				return check.Closed("Bucket denies anonymous listing",
					check.NewUnit(p.where(), []string{"anonymous ListObjects denied"}, check.WithSource(sourceListing))), nil
			}
			return check.Outcome{}, classify(obj.Err)
		}
		keys = append(keys, "object: "+obj.Key)
		break
	}
	specific := append([]string{"anonymous ListObjects allowed"}, keys...)
	return check.Open("Bucket allows anonymous listing",
		check.NewUnit(p.where(), specific, check.WithSource(sourceListing))), nil
}, errorChecks...))

// Register adds every object storage check to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, IsBucketPublic)
	assert.MustRegister(r, IsVersioningDisabled)
	assert.MustRegister(r, IsEncryptionDisabled)
	assert.MustRegister(r, AllowsAnonymousListing)
}

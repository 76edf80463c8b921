// internal/rules/stdlib.go
package rules

import (
	"net"
	"net/url"
	"regexp"
	"strings"
)

/*
 * Standard function library.
 *
 * Every implementation receives already-evaluated, non-nil arguments whose Go
 * types match the declared argument types (the checker guarantees this). An
 * input the function cannot handle yields nil, which the evaluator treats as an
 * absent value rather than an error: "parseURL of garbage" simply fails the
 * enclosing condition.
 */

// StandardLibrary returns the registry of built-in rule functions. partitions
// backs aws.partition and must not be nil.
func StandardLibrary(partitions *Partitions) *FunctionRegistry {
	r, err := NewFunctionRegistry(
		&FunctionMirror{
			Name: fnBooleanEquals, Owner: "core",
			Args:   []FunctionArg{{"left", TypeBoolean}, {"right", TypeBoolean}},
			Return: TypeBoolean,
			Call:   func(a []any) any { return a[0].(bool) == a[1].(bool) },
		},
		&FunctionMirror{
			Name: fnStringEquals, Owner: "core",
			Args:   []FunctionArg{{"left", TypeString}, {"right", TypeString}},
			Return: TypeBoolean,
			Call:   func(a []any) any { return a[0].(string) == a[1].(string) },
		},
		&FunctionMirror{
			Name: "substring", Owner: "core",
			Args: []FunctionArg{
				{"input", TypeString}, {"start", TypeInteger},
				{"stop", TypeInteger}, {"reverse", TypeBoolean},
			},
			Return: TypeString,
			Call: func(a []any) any {
				return Substring(a[0].(string), a[1].(int), a[2].(int), a[3].(bool))
			},
		},
		&FunctionMirror{
			Name: "uriEncode", Owner: "core",
			Args:   []FunctionArg{{"value", TypeString}},
			Return: TypeString,
			Call:   func(a []any) any { return URIEncode(a[0].(string)) },
		},
		&FunctionMirror{
			Name: "parseURL", Owner: "core",
			Args:   []FunctionArg{{"url", TypeString}},
			Return: TypeURL,
			Call:   func(a []any) any { return ParseURL(a[0].(string)) },
		},
		&FunctionMirror{
			Name: "isValidHostLabel", Owner: "core",
			Args:   []FunctionArg{{"label", TypeString}, {"allowSubDomains", TypeBoolean}},
			Return: TypeBoolean,
			Call:   func(a []any) any { return IsValidHostLabel(a[0].(string), a[1].(bool)) },
		},
		&FunctionMirror{
			Name: "aws.partition", Owner: "aws",
			Args:   []FunctionArg{{"region", TypeString}},
			Return: TypePartition,
			Call:   func(a []any) any { return partitions.Lookup(a[0].(string)) },
		},
		&FunctionMirror{
			Name: "aws.parseArn", Owner: "aws",
			Args:   []FunctionArg{{"arn", TypeString}},
			Return: TypeArn,
			Call:   func(a []any) any { return ParseArn(a[0].(string)) },
		},
		&FunctionMirror{
			Name: "aws.isVirtualHostableS3Bucket", Owner: "aws",
			Args:   []FunctionArg{{"bucket", TypeString}, {"allowSubDomains", TypeBoolean}},
			Return: TypeBoolean,
			Call:   func(a []any) any { return IsVirtualHostableS3Bucket(a[0].(string), a[1].(bool)) },
		},
	)
	if err != nil {
		panic("rules: invalid standard library: " + err.Error())
	}
	return r
}

// Substring returns input[start:stop], counted from the end when reverse is
// set. Non-ASCII input or an out-of-range window yields nil.
func Substring(input string, start, stop int, reverse bool) any {
	for i := 0; i < len(input); i++ {
		if input[i] > 127 {
			return nil
		}
	}
	if start < 0 || start >= stop || len(input) < stop {
		return nil
	}
	if reverse {
		return input[len(input)-stop : len(input)-start]
	}
	return input[start:stop]
}

// URIEncode percent-encodes everything outside the RFC 3986 unreserved set.
func URIEncode(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// ParseURL parses an http or https URL without a query string into a Url
// record; anything else yields nil.
func ParseURL(raw string) any {
	u, err := url.Parse(raw)
	if err != nil || u.Opaque != "" || u.Host == "" {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	if u.RawQuery != "" || u.ForceQuery {
		return nil
	}
	path := u.EscapedPath()
	normalized := path
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if !strings.HasSuffix(normalized, "/") {
		normalized += "/"
	}
	host := u.Hostname()
	isIP := net.ParseIP(host) != nil
	return NewRecord(TypeURL,
		RecordField{"scheme", u.Scheme},
		RecordField{"authority", u.Host},
		RecordField{"path", path},
		RecordField{"normalizedPath", normalized},
		RecordField{"isIp", isIP},
	)
}

var hostLabel = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,62}$`)

// IsValidHostLabel reports whether value is a DNS host label, or a dotted
// sequence of labels when allowSubDomains is set.
func IsValidHostLabel(value string, allowSubDomains bool) bool {
	if !allowSubDomains {
		return hostLabel.MatchString(value)
	}
	for _, label := range strings.Split(value, ".") {
		if !hostLabel.MatchString(label) {
			return false
		}
	}
	return true
}

var (
	virtualHostableBucket = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	ipLike                = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)
	arnResourceSeparator  = regexp.MustCompile(`[:/]`)
)

// IsVirtualHostableS3Bucket reports whether bucket can be used as the leading
// label of a virtual-hosted endpoint.
func IsVirtualHostableS3Bucket(bucket string, allowSubDomains bool) bool {
	if !virtualHostableBucket.MatchString(bucket) {
		return false
	}
	if !allowSubDomains {
		return !strings.Contains(bucket, ".")
	}
	if ipLike.MatchString(bucket) || strings.Contains(bucket, "..") {
		return false
	}
	return IsValidHostLabel(bucket, true)
}

// ParseArn splits an ARN of the form arn:partition:service:region:account:resource.
// The resource is split on ':' and '/' into resourceId.
func ParseArn(value string) any {
	parts := strings.SplitN(value, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" {
		return nil
	}
	partition, service, region, account, resource := parts[1], parts[2], parts[3], parts[4], parts[5]
	if partition == "" || service == "" || resource == "" {
		return nil
	}
	ids := arnResourceSeparator.Split(resource, -1)
	resourceID := make([]any, len(ids))
	for i, id := range ids {
		resourceID[i] = id
	}
	return NewRecord(TypeArn,
		RecordField{"partition", partition},
		RecordField{"service", service},
		RecordField{"region", region},
		RecordField{"accountId", account},
		RecordField{"resourceId", resourceID},
	)
}

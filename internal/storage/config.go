package storage

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type Mode string

const (
	// ModeCredentials signs URLs locally with the account key from a connection string.
	ModeCredentials Mode = "credentials"
	// ModeDelegated relies on a pre-shared access token appended to the account URL.
	ModeDelegated Mode = "delegated"
	// ModeDisabled turns every operation into a no-op with placeholder URLs.
	ModeDisabled Mode = "disabled"
)

// Config is the gateway's construction-time value object.
type Config struct {
	ConnectionString  string
	AccountURL        string
	SASToken          string
	Container         string
	Region            string
	PublicBaseURL     string
	PartSize          uint64
	UploadConcurrency uint
}

func (c Config) Mode() Mode {
	switch {
	case strings.TrimSpace(c.ConnectionString) != "":
		return ModeCredentials
	case strings.TrimSpace(c.AccountURL) != "":
		return ModeDelegated
	default:
		return ModeDisabled
	}
}

// ConnectionString is the parsed form of
// "Endpoint=host:9000;AccessKeyId=..;SecretAccessKey=..;UseSSL=true;Region=..".
// AccountName, AccountKey, BlobEndpoint and DefaultEndpointsProtocol are
// accepted as aliases.
type ConnectionString struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

func ParseConnectionString(raw string) (ConnectionString, error) {
	var cs ConnectionString
	useSSLSet := false

	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return cs, fmt.Errorf("malformed connection string segment %q", part)
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "endpoint", "blobendpoint":
			if u, ok := TryParseURL(value); ok {
				cs.Endpoint = u.Host
				if !useSSLSet {
					cs.UseSSL = u.Scheme == "https"
				}
			} else {
				cs.Endpoint = value
			}
		case "accesskeyid", "accountname":
			cs.AccessKeyID = value
		case "secretaccesskey", "accountkey":
			cs.SecretAccessKey = value
		case "usessl":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return cs, fmt.Errorf("invalid UseSSL value %q", value)
			}
			cs.UseSSL = b
			useSSLSet = true
		case "defaultendpointsprotocol":
			cs.UseSSL = strings.EqualFold(value, "https")
			useSSLSet = true
		case "region":
			cs.Region = value
		}
	}

	switch {
	case cs.Endpoint == "":
		return cs, fmt.Errorf("connection string is missing Endpoint")
	case cs.AccessKeyID == "" || cs.SecretAccessKey == "":
		return cs, fmt.Errorf("connection string is missing account credentials")
	}
	return cs, nil
}

// TryParseURL parses s only when it is an absolute URL with a host.
func TryParseURL(s string) (*url.URL, bool) {
	if !strings.Contains(s, "://") {
		return nil, false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
)

// ExtractLimitOffset reads limit and offset and clamps them to the
// configured pagination bounds.
func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit, err := QueryInt(query, "limit")
	if err != nil {
		return 0, 0, err
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		offset, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, invalidParam("offset", s)
		}
	}

	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset), nil
}

// QueryInt parses an optional integer parameter; absent means zero.
func QueryInt(query url.Values, name string) (int, error) {
	s := query.Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalidParam(name, s)
	}
	return v, nil
}

// QueryCount is QueryInt for parameters that cannot be negative.
func QueryCount(query url.Values, name string) (int, error) {
	v, err := QueryInt(query, name)
	if err == nil && v < 0 {
		return 0, invalidParam(name, query.Get(name))
	}
	return v, err
}

func QueryBool(query url.Values, name string) (bool, error) {
	s := query.Get(name)
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, invalidParam(name, s)
	}
	return v, nil
}

// QueryList collects a parameter that may repeat or hold a comma-separated
// list. Blank items are dropped.
func QueryList(query url.Values, name string) []string {
	var out []string
	for _, raw := range query[name] {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func invalidParam(name, value string) error {
	return apperrors.InvalidInput("invalid " + name + " parameter: " + value)
}

// DecodeJSON reads a JSON body into dst, rejecting unknown fields and
// trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if maxBytesErr := (*http.MaxBytesError)(nil); errors.As(err, &maxBytesErr) {
			return apperrors.New(apperrors.CodeBadRequest, "request body too large", http.StatusRequestEntityTooLarge)
		}
		return apperrors.InvalidInput("invalid JSON body: " + err.Error())
	}
	if decoder.More() {
		return apperrors.InvalidInput("request body must contain a single JSON object")
	}
	return nil
}

package geoserver

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

type TransactionResult struct {
	StatusCode    int
	TotalInserted int
	TotalUpdated  int
	TotalDeleted  int
	// FeatureIDs are the fids GeoServer assigned to inserted features.
	FeatureIDs []string
	Body       string
}

// Affected reports whether the summary counted any change at all.
func (r TransactionResult) Affected() bool {
	return r.TotalInserted+r.TotalUpdated+r.TotalDeleted > 0
}

// StatusError is a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geoserver returned status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// ExceptionError is an OWS or WFS exception report returned with a 2xx
// status, which GeoServer does for most transaction failures.
type ExceptionError struct {
	Code    string
	Locator string
	Text    string
}

func (e *ExceptionError) Error() string {
	var b strings.Builder
	b.WriteString("geoserver exception")
	if e.Code != "" {
		b.WriteString(" " + e.Code)
	}
	if e.Locator != "" {
		b.WriteString(" at " + e.Locator)
	}
	if e.Text != "" {
		b.WriteString(": " + e.Text)
	}
	return b.String()
}

var ErrUnexpectedResponse = errors.New("unexpected transaction response")

// txDocument covers wfs:TransactionResponse (1.1.0), ows:ExceptionReport and
// the older ServiceExceptionReport. Unqualified tags match any namespace.
type txDocument struct {
	XMLName xml.Name
	Summary struct {
		Inserted int `xml:"totalInserted"`
		Updated  int `xml:"totalUpdated"`
		Deleted  int `xml:"totalDeleted"`
	} `xml:"TransactionSummary"`
	Inserted []struct {
		FeatureIDs []struct {
			FID string `xml:"fid,attr"`
		} `xml:"FeatureId"`
	} `xml:"InsertResults>Feature"`
	Exceptions []struct {
		Code    string   `xml:"exceptionCode,attr"`
		Locator string   `xml:"locator,attr"`
		Text    []string `xml:"ExceptionText"`
	} `xml:"Exception"`
	ServiceExceptions []struct {
		Code    string `xml:"code,attr"`
		Locator string `xml:"locator,attr"`
		Text    string `xml:",chardata"`
	} `xml:"ServiceException"`
}

func parseTransactionResponse(body []byte, res *TransactionResult) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", ErrUnexpectedResponse)
	}
	var doc txDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	switch doc.XMLName.Local {
	case "TransactionResponse":
		res.TotalInserted = doc.Summary.Inserted
		res.TotalUpdated = doc.Summary.Updated
		res.TotalDeleted = doc.Summary.Deleted
		for _, f := range doc.Inserted {
			for _, id := range f.FeatureIDs {
				res.FeatureIDs = append(res.FeatureIDs, id.FID)
			}
		}
		return nil
	case "ExceptionReport":
		if len(doc.Exceptions) == 0 {
			return &ExceptionError{}
		}
		ex := doc.Exceptions[0]
		return &ExceptionError{Code: ex.Code, Locator: ex.Locator, Text: strings.TrimSpace(strings.Join(ex.Text, " "))}
	case "ServiceExceptionReport":
		if len(doc.ServiceExceptions) == 0 {
			return &ExceptionError{}
		}
		ex := doc.ServiceExceptions[0]
		return &ExceptionError{Code: ex.Code, Locator: ex.Locator, Text: strings.TrimSpace(ex.Text)}
	default:
		return fmt.Errorf("%w: root element %q", ErrUnexpectedResponse, doc.XMLName.Local)
	}
}

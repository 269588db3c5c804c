package producer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/siri"
)

var (
	// ErrProducerUnreachable covers transport failures and non-2xx answers.
	ErrProducerUnreachable = errors.New("producer unreachable")
	// ErrMalformedResponse covers unparseable bodies and rejected requests.
	ErrMalformedResponse = errors.New("malformed producer response")
)

const maxResponseBytes = 1 << 20

// send POSTs a SIRI document with basic auth and decodes the answer.
func (s *Service) send(ctx context.Context, url string, creds model.Credentials, doc *siri.Siri) (*siri.Siri, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(s.rb.BuildXML(doc)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProducerUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/xml")
	if creds.Username != "" || creds.Password != "" {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProducerUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrProducerUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrProducerUnreachable, resp.StatusCode, url)
	}
	answer, err := siri.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return answer, nil
}

package discovery

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

const autodiscoverIMAPResponse = `<?xml version="1.0" encoding="utf-8"?>
<Autodiscover xmlns="http://schemas.microsoft.com/exchange/autodiscover/responseschema/2006">
  <Response>
    <Account>
      <Protocol>
        <Type>IMAP</Type>
        <Server>imap.example.org</Server>
        <Port>993</Port>
      </Protocol>
      <Protocol>
        <Type>SMTP</Type>
        <Server>smtp.example.org</Server>
        <Port>587</Port>
      </Protocol>
    </Account>
  </Response>
</Autodiscover>`

func TestParseAutodiscoverResponse(t *testing.T) {
	assert.Equal(t, "imap.example.org", parseAutodiscoverResponse(autodiscoverIMAPResponse))
}

func TestParseAutodiscoverResponseNoIMAP(t *testing.T) {
	body := `<Autodiscover><Response><Account><Protocol>
		<Type>EXCH</Type><Server>mail.example.org</Server>
	</Protocol></Account></Response></Autodiscover>`
	assert.Empty(t, parseAutodiscoverResponse(body))
}

func TestParseAutodiscoverResponseCaseInsensitive(t *testing.T) {
	body := `<autodiscover><protocol>
		<type>imap</type><server>IMAP.Example.Org</server>
	</protocol></autodiscover>`
	assert.Equal(t, "IMAP.Example.Org", parseAutodiscoverResponse(body))
}

func TestParseAutodiscoverResponseEmpty(t *testing.T) {
	assert.Empty(t, parseAutodiscoverResponse(""))
	assert.Empty(t, parseAutodiscoverResponse("<html>not autodiscover at all</html>"))
}

func TestCandidateEndpoints(t *testing.T) {
	r := NewExchangeResolver(NewProber())
	r.LookupSRV = func(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
		if service == "autodiscover" {
			return "", []*net.SRV{{Target: "autodiscover.provider.net.", Port: 443}}, nil
		}
		return "", nil, fmt.Errorf("no SRV")
	}

	endpoints := r.candidateEndpoints(context.Background(), "example.org", func(string, ...interface{}) {})

	assert.Equal(t, []string{
		"https://autodiscover.provider.net/autodiscover/autodiscover.xml",
		"https://autodiscover.example.org/autodiscover/autodiscover.xml",
		"https://example.org/autodiscover/autodiscover.xml",
	}, endpoints, "SRV-published endpoint first, then the conventional locations")
}

func TestCandidateEndpointsWithoutSRV(t *testing.T) {
	r := NewExchangeResolver(NewProber())
	r.LookupSRV = func(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
		return "", nil, fmt.Errorf("no SRV")
	}

	endpoints := r.candidateEndpoints(context.Background(), "example.org", func(string, ...interface{}) {})
	assert.Len(t, endpoints, 2)
}

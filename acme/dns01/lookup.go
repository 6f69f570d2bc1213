package dns01

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const defaultResolvConf = "/etc/resolv.conf"

var defaultNameservers = []string{
	"8.8.8.8:53",
	"1.1.1.1:53",
}

// queryTimeout bounds each individual DNS exchange.
var queryTimeout = 10 * time.Second

// Nameservers returns the system's configured resolvers, falling back
// to well-known public ones when resolv.conf is unusable. Every entry
// carries a port.
func Nameservers() []string {
	config, err := dns.ClientConfigFromFile(defaultResolvConf)
	if err != nil || len(config.Servers) == 0 {
		return defaultNameservers
	}

	var servers []string
	for _, server := range config.Servers {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
		servers = append(servers, server)
	}
	return servers
}

// CheckPropagation queries the given nameservers for TXT records at
// fqdn and reports whether the expected value is visible yet. It is
// advisory: a false result means the operator should wait a little
// longer before asking the CA to validate, nothing more. The CA's own
// resolvers are the only verdict that counts.
func CheckPropagation(fqdn, value string, nameservers []string) (bool, error) {
	if !strings.HasSuffix(fqdn, ".") {
		fqdn += "."
	}
	if len(nameservers) == 0 {
		nameservers = Nameservers()
	}

	r, err := query(fqdn, dns.TypeTXT, nameservers)
	if err != nil {
		return false, err
	}

	// NXDOMAIN is not an error here, the record just has not shown up yet.
	if r.Rcode != dns.RcodeSuccess && r.Rcode != dns.RcodeNameError {
		return false, fmt.Errorf("nameserver returned %s for %s", dns.RcodeToString[r.Rcode], fqdn)
	}

	for _, rr := range r.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			if strings.Join(txt.Txt, "") == value {
				return true, nil
			}
		}
	}
	return false, nil
}

// query sends the question to each nameserver in turn until one
// answers, retrying truncated UDP responses over TCP.
func query(fqdn string, rtype uint16, nameservers []string) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(fqdn, rtype)
	m.SetEdns0(4096, false)

	var in *dns.Msg
	var err error
	for _, ns := range nameservers {
		udp := &dns.Client{Net: "udp", Timeout: queryTimeout}
		in, _, err = udp.Exchange(m, ns)

		if in != nil && in.Truncated {
			tcp := &dns.Client{Net: "tcp", Timeout: queryTimeout}
			in, _, err = tcp.Exchange(m, ns)
		}

		if err == nil {
			return in, nil
		}
	}
	return nil, err
}

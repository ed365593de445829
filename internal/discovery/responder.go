package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// discoverRequest is the literal probe display units broadcast on the LAN
const discoverRequest = "DIGITALSIGNAGE_DISCOVER"

// response is the unicast answer to a discovery probe
type response struct {
	Type         string    `json:"Type"`
	ServerName   string    `json:"ServerName"`
	LocalIPs     []string  `json:"LocalIPs"`
	Port         int       `json:"Port"`
	Protocol     string    `json:"Protocol"`
	EndpointPath string    `json:"EndpointPath"`
	SslEnabled   bool      `json:"SslEnabled"`
	Timestamp    time.Time `json:"Timestamp"`
}

// Responder answers LAN discovery probes so units can find the
// coordinator without static configuration
type Responder struct {
	serverName   string
	port         int
	servicePort  int
	endpointPath string
	sslEnabled   bool

	conn *net.UDPConn
}

// NewResponder creates a discovery responder listening on the given UDP
// port, advertising the coordinator's service port and endpoint
func NewResponder(serverName string, port, servicePort int, endpointPath string, sslEnabled bool) *Responder {
	return &Responder{
		serverName:   serverName,
		port:         port,
		servicePort:  servicePort,
		endpointPath: endpointPath,
		sslEnabled:   sslEnabled,
	}
}

// Run binds the UDP socket and answers probes until the context ends
func (r *Responder) Run(ctx context.Context) error {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: r.port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("listen discovery on %s: %w", addr, err)
	}
	r.conn = conn

	log.Info().
		Int("port", r.port).
		Str("server_name", r.serverName).
		Msg("Discovery responder started")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 2048)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			log.Warn().Err(err).Msg("Discovery read error")
			continue
		}

		probe := strings.TrimSpace(string(buf[:n]))
		if probe != discoverRequest {
			log.Debug().
				Str("remote_addr", remote.String()).
				Str("probe", probe).
				Msg("Ignoring unrecognized discovery probe")
			continue
		}

		r.answer(remote)
	}
}

func (r *Responder) answer(remote *net.UDPAddr) {
	resp := response{
		Type:         "DIGITALSIGNAGE_SERVER",
		ServerName:   r.serverName,
		LocalIPs:     localIPs(),
		Port:         r.servicePort,
		Protocol:     "ws",
		EndpointPath: r.endpointPath,
		SslEnabled:   r.sslEnabled,
		Timestamp:    time.Now().UTC(),
	}
	if r.sslEnabled {
		resp.Protocol = "wss"
	}

	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode discovery response")
		return
	}

	if _, err := r.conn.WriteToUDP(data, remote); err != nil {
		log.Warn().
			Err(err).
			Str("remote_addr", remote.String()).
			Msg("Failed to send discovery response")
		return
	}

	log.Debug().
		Str("remote_addr", remote.String()).
		Msg("Answered discovery probe")
}

// localIPs lists the non-loopback unicast IPv4 addresses of this host
func localIPs() []string {
	var ips []string

	ifaces, err := net.Interfaces()
	if err != nil {
		return ips
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ips = append(ips, ip.String())
		}
	}
	return ips
}

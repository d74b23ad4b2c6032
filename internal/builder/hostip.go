package builder

import "net"

// DetectIP returns the first non-loopback IPv4 address of the host, or an
// empty string when there is none.
func DetectIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

// hostIP picks the address rendered into templates: the configured address,
// then the job's static IP, then the detected one.
func (b *Builder) hostIP(staticIP string) string {
	if b.opts.IP != "" {
		return b.opts.IP
	}
	if staticIP != "" {
		return staticIP
	}
	return b.detectIP()
}

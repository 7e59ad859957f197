// Package provisioning imports OpenVPN client profiles into the flat
// property form connman expects when creating a connection.
//
// Directives connman understands become OpenVPN.* properties. Embedded
// <block> content is written to files named after the SHA-1 of their
// content, and every directive connman does not know is collected into a
// side configuration file referenced by OpenVPN.ConfigFile.
package provisioning

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/yllada/vpn-settings/common"
	"github.com/yllada/vpn-settings/properties"
)

var (
	commentLeader   = regexp.MustCompile(`^\s*(?:#|;)`)
	embeddedLeader  = regexp.MustCompile(`^\s*<([^/>]+)>`)
	embeddedTrailer = regexp.MustCompile(`^\s*</([^/>]+)>`)
)

// Wire keys produced by the importer.
const (
	KeyHost         = "Host"
	KeyPort         = "OpenVPN.Port"
	KeyProto        = "OpenVPN.Proto"
	KeyCACert       = "OpenVPN.CACert"
	KeyCert         = "OpenVPN.Cert"
	KeyKey          = "OpenVPN.Key"
	KeyAuthUserPass = "OpenVPN.AuthUserPass"
	KeyMTU          = "OpenVPN.MTU"
	KeyNSCertType   = "OpenVPN.NSCertType"
	KeyAskPass      = "OpenVPN.AskPass"
	KeyAuthNoCache  = "OpenVPN.AuthNoCache"
	KeyTLSRemote    = "OpenVPN.TLSRemote"
	KeyCipher       = "OpenVPN.Cipher"
	KeyAuth         = "OpenVPN.Auth"
	KeyCompLZO      = "OpenVPN.CompLZO"
	KeyRemoteCert   = "OpenVPN.RemoteCertTls"
	KeyConfigFile   = "OpenVPN.ConfigFile"
)

// directives whose single argument is copied verbatim (joined by spaces).
var simpleDirectives = map[string]string{
	"mtu":             KeyMTU,
	"tun-mtu":         KeyMTU,
	"ns-cert-type":    KeyNSCertType,
	"tls-remote":      KeyTLSRemote,
	"cipher":          KeyCipher,
	"auth":            KeyAuth,
	"remote-cert-tls": KeyRemoteCert,
}

var fileDirectives = map[string]string{
	"ca":             KeyCACert,
	"cert":           KeyCert,
	"key":            KeyKey,
	"auth-user-pass": KeyAuthUserPass,
}

var embeddedKeys = map[string]string{
	"ca":   KeyCACert,
	"cert": KeyCert,
	"key":  KeyKey,
}

// Importer converts OpenVPN profiles, writing extracted files to outputDir.
type Importer struct {
	outputDir string
	logger    hclog.Logger
}

// NewImporter returns an importer writing into outputDir.
func NewImporter(outputDir string, logger hclog.Logger) *Importer {
	return &Importer{
		outputDir: outputDir,
		logger:    common.LoggerOr(logger, "provisioning"),
	}
}

// OutputDir returns the directory extracted files are written to.
func (im *Importer) OutputDir() string { return im.outputDir }

// ImportFile imports the profile at path. Relative file references in the
// profile resolve against the profile's directory. An unreadable file
// yields an empty map.
func (im *Importer) ImportFile(path string) properties.Map {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	f, err := os.Open(abs)
	if err != nil {
		im.logger.Warn("unable to open provisioning file", "path", path, "error", err)
		return properties.Map{}
	}
	defer f.Close()

	return im.Import(f, filepath.Dir(abs))
}

type parser struct {
	im      *Importer
	baseDir string
	out     properties.Map
	extra   []string
	marker  string
	content strings.Builder
}

// Import reads a profile from r. It never fails: malformed blocks and
// unwritable output are logged and skipped.
func (im *Importer) Import(r io.Reader, baseDir string) properties.Map {
	p := &parser{im: im, baseDir: baseDir, out: properties.Map{}}

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			p.line(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
		}
		if err != nil {
			if err != io.EOF {
				im.logger.Warn("error reading provisioning file", "error", err)
			}
			break
		}
	}
	if p.marker != "" {
		im.logger.Warn("unterminated embedded content", "marker", p.marker)
	}

	p.writeExtraOptions()
	return p.out
}

func (p *parser) line(line string) {
	if commentLeader.MatchString(line) {
		return
	}
	if m := embeddedLeader.FindStringSubmatch(line); m != nil {
		p.marker = m[1]
		p.content.Reset()
		return
	}
	if m := embeddedTrailer.FindStringSubmatch(line); m != nil {
		p.closeBlock(m[1])
		return
	}
	if p.marker != "" {
		p.content.WriteString(line)
		p.content.WriteByte('\n')
		return
	}
	p.directive(line)
}

func (p *parser) closeBlock(marker string) {
	defer func() {
		p.marker = ""
		p.content.Reset()
	}()

	if marker != p.marker {
		p.im.logger.Warn("invalid embedded content", "marker", marker, "expected", p.marker)
		return
	}
	content := p.content.String()
	if content == "" {
		p.im.logger.Warn("ignoring empty embedded content", "marker", marker)
		return
	}

	if marker == "connection" {
		p.extra = append(p.extra, "<connection>\n"+content+"</connection>")
		return
	}

	sum := sha1.Sum([]byte(content))
	path, ok := p.im.write(hex.EncodeToString(sum[:])+"."+marker, []byte(content))
	if !ok {
		return
	}
	if key, ok := embeddedKeys[marker]; ok {
		p.set(key, path)
		return
	}
	// the marker names the openvpn option, e.g. tls-auth
	p.extra = append(p.extra, marker+" "+path)
}

func (p *parser) directive(line string) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return
	}
	directive, args := tokens[0], tokens[1:]
	joined := strings.Join(args, " ")

	if key, ok := simpleDirectives[directive]; ok {
		if len(args) > 0 {
			p.set(key, joined)
		}
		return
	}

	if key, ok := fileDirectives[directive]; ok {
		switch {
		case len(args) > 0:
			file := args[0]
			if !filepath.IsAbs(file) {
				file = filepath.Join(p.baseDir, file)
			}
			p.set(key, file)
		case directive == "auth-user-pass":
			p.set(key, "-")
		}
		return
	}

	switch directive {
	case "remote":
		if p.has(KeyHost) {
			// connman supports a single remote; the rest go to the config file
			p.extra = append(p.extra, line)
			return
		}
		if len(args) > 0 {
			p.set(KeyHost, args[0])
		}
		if len(args) > 1 {
			p.set(KeyPort, args[1])
		}
		if len(args) > 2 {
			p.set(KeyProto, normaliseProtocol(args[2]))
		}
	case "proto":
		if len(args) > 0 && !p.has(KeyProto) {
			p.set(KeyProto, normaliseProtocol(joined))
		}
	case "port":
		if len(args) > 0 && !p.has(KeyPort) {
			p.set(KeyPort, joined)
		}
	case "askpass":
		p.set(KeyAskPass, joined)
	case "auth-nocache":
		p.set(KeyAuthNoCache, "true")
	case "comp-lzo":
		if len(args) > 0 {
			p.set(KeyCompLZO, joined)
		} else {
			p.set(KeyCompLZO, "adaptive")
		}
	default:
		p.extra = append(p.extra, line)
	}
}

func (p *parser) writeExtraOptions() {
	if len(p.extra) == 0 {
		return
	}

	h := sha1.New()
	var body strings.Builder
	for _, line := range p.extra {
		io.WriteString(h, line)
		body.WriteString(line)
		body.WriteByte('\n')
	}

	path, ok := p.im.write(hex.EncodeToString(h.Sum(nil))+".conf", []byte(body.String()))
	if ok {
		p.set(KeyConfigFile, path)
	}
}

func (p *parser) set(key, value string) {
	p.out[key] = properties.String(value)
}

func (p *parser) has(key string) bool {
	_, ok := p.out[key]
	return ok
}

// write stores content under name in the output directory and returns the
// absolute path of the written file.
func (im *Importer) write(name string, content []byte) (string, bool) {
	if err := common.EnsureDir(im.outputDir); err != nil {
		im.logger.Warn("unable to create base directory for VPN provisioning content", "path", im.outputDir, "error", err)
		return "", false
	}

	path, err := filepath.Abs(filepath.Join(im.outputDir, name))
	if err != nil {
		path = filepath.Join(im.outputDir, name)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		im.logger.Warn("unable to write VPN provisioning file", "path", path, "error", err)
		return "", false
	}
	return path, true
}

// normaliseProtocol maps the undocumented "tcp" to what openvpn reads it as.
func normaliseProtocol(proto string) string {
	if proto == "tcp" {
		return "tcp-client"
	}
	return proto
}

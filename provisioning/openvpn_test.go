package provisioning

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yllada/vpn-settings/properties"
)

func newTestImporter(t *testing.T) *Importer {
	t.Helper()
	return NewImporter(filepath.Join(t.TempDir(), "out"), hclog.NewNullLogger())
}

func importString(t *testing.T, im *Importer, profile string) properties.Map {
	t.Helper()
	return im.Import(strings.NewReader(profile), "/etc/openvpn")
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestImport_Remote(t *testing.T) {
	im := newTestImporter(t)
	out := importString(t, im, "remote vpn.example.com 1194 tcp\n")

	assert.Equal(t, "vpn.example.com", out.Str(KeyHost))
	assert.Equal(t, "1194", out.Str(KeyPort))
	assert.Equal(t, "tcp-client", out.Str(KeyProto))
	assert.NotContains(t, out, KeyConfigFile)
}

func TestImport_RemoteTakesPrecedence(t *testing.T) {
	im := newTestImporter(t)
	out := importString(t, im, strings.Join([]string{
		"proto udp",
		"remote a.example.com 443 tcp",
		"port 1194",
		"remote b.example.com",
	}, "\n"))

	assert.Equal(t, "a.example.com", out.Str(KeyHost))
	assert.Equal(t, "tcp-client", out.Str(KeyProto), "the first remote's protocol wins")
	assert.Equal(t, "443", out.Str(KeyPort))

	configFile := out.Str(KeyConfigFile)
	require.NotEmpty(t, configFile)
	data, err := os.ReadFile(configFile)
	require.NoError(t, err)
	assert.Equal(t, "remote b.example.com\n", string(data))
	assert.Equal(t, sha1Hex("remote b.example.com")+".conf", filepath.Base(configFile))
}

func TestImport_ProtoAfterRemoteIgnored(t *testing.T) {
	im := newTestImporter(t)
	out := importString(t, im, strings.Join([]string{
		"remote a.example.com 443 tcp",
		"proto udp",
		"port 1194",
	}, "\n"))

	assert.Equal(t, "tcp-client", out.Str(KeyProto))
	assert.Equal(t, "443", out.Str(KeyPort))
	assert.NotContains(t, out, KeyConfigFile)
}

func TestImport_LongLineDoesNotStopParsing(t *testing.T) {
	im := newTestImporter(t)
	long := "setenv BLOB " + strings.Repeat("x", 2*1024*1024)
	out := importString(t, im, strings.Join([]string{
		"remote vpn.example.com 1194",
		long,
		"cipher AES-256-GCM",
		"proto tcp\r",
	}, "\n"))

	assert.Equal(t, "vpn.example.com", out.Str(KeyHost))
	assert.Equal(t, "AES-256-GCM", out.Str(KeyCipher))
	assert.Equal(t, "tcp-client", out.Str(KeyProto))

	data, err := os.ReadFile(out.Str(KeyConfigFile))
	require.NoError(t, err)
	assert.Equal(t, long+"\n", string(data))
}

func TestImport_Directives(t *testing.T) {
	profile := `# comment
; another comment
client
dev tun
ca ca.crt
cert /abs/client.crt
key keys/client.key
auth-user-pass
tun-mtu 1400
ns-cert-type server
askpass
auth-nocache
tls-remote server name
cipher AES-256-CBC
auth SHA256
comp-lzo
remote-cert-tls server
`
	im := newTestImporter(t)
	out := importString(t, im, profile)

	tests := []struct {
		key  string
		want string
	}{
		{KeyCACert, "/etc/openvpn/ca.crt"},
		{KeyCert, "/abs/client.crt"},
		{KeyKey, "/etc/openvpn/keys/client.key"},
		{KeyAuthUserPass, "-"},
		{KeyMTU, "1400"},
		{KeyNSCertType, "server"},
		{KeyAskPass, ""},
		{KeyAuthNoCache, "true"},
		{KeyTLSRemote, "server name"},
		{KeyCipher, "AES-256-CBC"},
		{KeyAuth, "SHA256"},
		{KeyCompLZO, "adaptive"},
		{KeyRemoteCert, "server"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.Contains(t, out, tt.key)
			assert.Equal(t, tt.want, out.Str(tt.key))
		})
	}

	data, err := os.ReadFile(out.Str(KeyConfigFile))
	require.NoError(t, err)
	assert.Equal(t, "client\ndev tun\n", string(data))
}

func TestImport_EmbeddedBlocks(t *testing.T) {
	profile := `<ca>
-----BEGIN CERTIFICATE-----
MIIB
-----END CERTIFICATE-----
</ca>
<tls-auth>
-----BEGIN OpenVPN Static key V1-----
abcd
</tls-auth>
<connection>
remote backup.example.com 1194
</connection>
`
	im := newTestImporter(t)
	out := importString(t, im, profile)

	caContent := "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n"
	caPath := out.Str(KeyCACert)
	assert.Equal(t, sha1Hex(caContent)+".ca", filepath.Base(caPath))
	data, err := os.ReadFile(caPath)
	require.NoError(t, err)
	assert.Equal(t, caContent, string(data))

	tlsContent := "-----BEGIN OpenVPN Static key V1-----\nabcd\n"
	tlsPath := filepath.Join(im.OutputDir(), sha1Hex(tlsContent)+".tls-auth")
	absTLS, err := filepath.Abs(tlsPath)
	require.NoError(t, err)
	assert.FileExists(t, absTLS)

	data, err = os.ReadFile(out.Str(KeyConfigFile))
	require.NoError(t, err)
	assert.Equal(t,
		"tls-auth "+absTLS+"\n<connection>\nremote backup.example.com 1194\n</connection>\n",
		string(data))
	assert.NotContains(t, out, KeyHost, "remote inside a connection block is not a directive")
}

func TestImport_MalformedBlocks(t *testing.T) {
	profile := `<cert>
data
</key>
<key>
</key>
remote vpn.example.com
`
	im := newTestImporter(t)
	out := importString(t, im, profile)

	assert.NotContains(t, out, KeyCert)
	assert.NotContains(t, out, KeyKey)
	assert.Equal(t, "vpn.example.com", out.Str(KeyHost))
	assert.NoDirExists(t, im.OutputDir())
}

func TestImport_UnwritableOutput(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	im := NewImporter(filepath.Join(blocker, "out"), hclog.NewNullLogger())
	out := im.Import(strings.NewReader("<ca>\nx\n</ca>\nclient\nremote h\n"), "/")

	assert.Equal(t, "h", out.Str(KeyHost))
	assert.NotContains(t, out, KeyCACert)
	assert.NotContains(t, out, KeyConfigFile)
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "office.ovpn")
	require.NoError(t, os.WriteFile(path, []byte("remote h 1194\nca ca.pem\n"), 0600))

	im := newTestImporter(t)
	out := im.ImportFile(path)
	assert.Equal(t, filepath.Join(dir, "ca.pem"), out.Str(KeyCACert))

	assert.Empty(t, im.ImportFile(filepath.Join(dir, "missing.ovpn")))
}

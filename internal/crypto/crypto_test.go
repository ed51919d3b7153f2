package crypto

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known development key (hardhat account #0).
const (
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestSigner_Address(t *testing.T) {
	s, err := NewSigner("0x"+devKey, 137)
	require.NoError(t, err)
	assert.Equal(t, devAddress, s.Address().Hex())
}

func TestSigner_InvalidKey(t *testing.T) {
	_, err := NewSigner("zz", 137)
	assert.Error(t, err)
}

func TestSigner_SignOrderRecoversToWallet(t *testing.T) {
	s, err := NewSigner(devKey, 137)
	require.NoError(t, err)
	order := OrderPayload{
		Salt:        "12345",
		Maker:       devAddress,
		Signer:      devAddress,
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount: "850000",
		TakerAmount: "1000000",
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
	}

	sig, err := s.SignOrder(order, CTFExchange)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sig, "0x"))

	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	require.NoError(t, err)
	require.Len(t, raw, 65)
	assert.Contains(t, []byte{27, 28}, raw[64])

	digest, err := s.OrderDigest(order, CTFExchange)
	require.NoError(t, err)
	raw[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, raw)
	require.NoError(t, err)
	assert.Equal(t, devAddress, ethcrypto.PubkeyToAddress(*pub).Hex())
}

func TestSigner_OrderDigestDependsOnExchange(t *testing.T) {
	s, err := NewSigner(devKey, 137)
	require.NoError(t, err)
	order := OrderPayload{Salt: "1", TokenID: "2", MakerAmount: "3", TakerAmount: "4", Expiration: "0", Nonce: "0", FeeRateBps: "0"}

	a, err := s.OrderDigest(order, CTFExchange)
	require.NoError(t, err)
	b, err := s.OrderDigest(order, NegRiskCTFExchange)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSigner_RejectsBadOrderNumbers(t *testing.T) {
	s, err := NewSigner(devKey, 137)
	require.NoError(t, err)

	_, err = s.SignOrder(OrderPayload{Salt: "x"}, CTFExchange)
	assert.ErrorContains(t, err, "salt")
}

func TestKeyFile_RoundTripAndLoad(t *testing.T) {
	sealed, err := EncryptKey("0x"+devKey, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(sealed, "wrong")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, sealed, 0o600))

	got, err := LoadKey(KeySource{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, devKey, got)
}

func TestLoadKey_RawWins(t *testing.T) {
	got, err := LoadKey(KeySource{RawPrivateKey: "0x" + devKey, EncryptedKeyPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, devKey, got)

	_, err = LoadKey(KeySource{})
	assert.Error(t, err)
}

func TestAPICreds_L2Headers(t *testing.T) {
	creds := APICreds{Key: "key-1", Secret: "c2VjcmV0LXNlY3JldA==", Passphrase: "pass"}

	h1 := creds.L2HeadersAt(devAddress, "GET", "/balance-allowance", "", 1700000000)
	h2 := creds.L2HeadersAt(devAddress, "GET", "/balance-allowance", "", 1700000000)
	h3 := creds.L2HeadersAt(devAddress, "POST", "/order", "{}", 1700000000)

	assert.Equal(t, "1700000000", h1["POLY_TIMESTAMP"])
	assert.Equal(t, "key-1", h1["POLY_API_KEY"])
	assert.Equal(t, devAddress, h1["POLY_ADDRESS"])
	assert.Equal(t, h1["POLY_SIGNATURE"], h2["POLY_SIGNATURE"])
	assert.NotEqual(t, h1["POLY_SIGNATURE"], h3["POLY_SIGNATURE"])
	assert.NotContains(t, h1["POLY_SIGNATURE"], "+")
	assert.NotContains(t, creds.String(), "c2VjcmV0LXNlY3JldA==")
}

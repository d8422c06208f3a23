package ton

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"github.com/raykavin/tonpairs/pkg/core"
	"golang.org/x/crypto/pbkdf2"
)

// MnemonicWords is the number of words of a TON mnemonic
const MnemonicWords = 24

const (
	seedSalt       = "TON default seed"
	seedIterations = 100000
)

// SplitMnemonic normalizes free text into mnemonic words
func SplitMnemonic(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	for i, word := range words {
		words[i] = strings.Trim(word, `"'`)
	}
	return words
}

// ValidateMnemonic checks the word count and that every word is alphabetic
func ValidateMnemonic(words []string) error {
	if len(words) != MnemonicWords {
		return core.NewValidationError("mnemonic", "expected %d words, got %d", MnemonicWords, len(words))
	}

	for _, word := range words {
		if word == "" || strings.IndexFunc(word, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
			return core.NewValidationError("mnemonic", "%q is not a mnemonic word", word)
		}
	}

	return nil
}

// Keyring derives ed25519 keys and user-friendly addresses from mnemonics.
// Generated wallets are children of the mnemonic seed, indexed from zero.
type Keyring struct{}

// Connect derives the main wallet of a mnemonic
func (Keyring) Connect(words []string) (core.Wallet, error) {
	if err := ValidateMnemonic(words); err != nil {
		return core.Wallet{}, err
	}
	return walletFromSeed(rootSeed(words)), nil
}

// Derive derives count child wallets of a mnemonic
func (Keyring) Derive(words []string, count int) ([]core.Wallet, error) {
	if err := ValidateMnemonic(words); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, core.NewValidationError("count", "must be positive")
	}

	root := rootSeed(words)
	wallets := make([]core.Wallet, 0, count)
	for i := 0; i < count; i++ {
		mac := hmac.New(sha512.New, root)
		mac.Write([]byte("wallet:" + strconv.Itoa(i)))
		wallets = append(wallets, walletFromSeed(mac.Sum(nil)[:ed25519.SeedSize]))
	}

	return wallets, nil
}

// rootSeed follows the TON mnemonic scheme: HMAC-SHA512 entropy stretched
// with PBKDF2-SHA512
func rootSeed(words []string) []byte {
	mac := hmac.New(sha512.New, []byte(strings.Join(words, " ")))
	entropy := mac.Sum(nil)
	return pbkdf2.Key(entropy, []byte(seedSalt), seedIterations, 64, sha512.New)[:ed25519.SeedSize]
}

func walletFromSeed(seed []byte) core.Wallet {
	key := ed25519.NewKeyFromSeed(seed)
	public := key.Public().(ed25519.PublicKey)

	return core.Wallet{
		Address:    EncodeAddress(0, sha256.Sum256(public), true),
		PrivateKey: hex.EncodeToString(seed),
	}
}

// PrivateKeyFromHex restores an ed25519 key from its hex seed
func PrivateKeyFromHex(value string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(value)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, core.NewValidationError("private key", "expected %d bytes", ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

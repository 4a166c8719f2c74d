package aesdir

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePassphrase(t *testing.T) {
	raw := newTestMemDir(t)
	d, err := Open(raw, []byte("wordpass"), testConfig(t))
	require.NoError(t, err)
	require.NoError(t, d.AtomicWrite("doc1", []byte("hello")))

	before, err := ReadKeyFile(raw)
	require.NoError(t, err)

	newPass := []byte("password")
	require.NoError(t, d.ChangePassphrase(newPass))
	assert.Equal(t, make([]byte, len(newPass)), newPass, "new passphrase is wiped")
	require.NoError(t, d.Close())

	after, err := ReadKeyFile(raw)
	require.NoError(t, err)
	assert.NotEqual(t, before.Salt, after.Salt, "fresh salt")
	assert.NotEqual(t, before.IV, after.IV, "fresh iv")

	_, err = Open(raw, []byte("wordpass"), testConfig(t))
	assert.True(t, IsAuthenticationError(err), "old passphrase still opens: %v", err)

	d, err = Open(raw, []byte("password"), testConfig(t))
	require.NoError(t, err)
	defer d.Close()
	data, err := d.OpenRead("doc1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data, "contents survive a passphrase change")
}

func TestChangePassphrase_Empty(t *testing.T) {
	d := openTestDir(t, newTestMemDir(t), "wordpass")
	err := d.ChangePassphrase(nil)
	assert.True(t, errors.Is(err, ErrEmptyPassphrase))
}

func TestChangePassphrase_LockHeld(t *testing.T) {
	raw := newTestMemDir(t)
	d := openTestDir(t, raw, "wordpass")

	lock, err := raw.AcquireLock(Lock{Name: KeyFileLock})
	require.NoError(t, err)
	defer lock.Release()

	err = d.ChangePassphrase([]byte("password"))
	assert.True(t, errors.Is(err, ErrLockBusy))
}

func TestVerifyFiles(t *testing.T) {
	raw, _ := newTestOSDir(t)
	logger, hook := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.Logger = logger
	cfg.VerifyWorkers = 3

	d, err := Open(raw, []byte("wordpass"), cfg)
	require.NoError(t, err)
	defer d.Close()

	var names []string
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("doc%d", i)
		names = append(names, name)
		require.NoError(t, d.AtomicWrite(name, []byte(name)))
	}

	// corrupt two files behind the facade
	require.NoError(t, raw.AtomicWrite("doc3", []byte("short")))
	require.NoError(t, raw.AtomicWrite("doc7", make([]byte, IVSize)))
	names = append(names, "missing")

	require.NoError(t, d.VerifyFile("doc0"))
	assert.True(t, IsCryptoError(d.VerifyFile("doc3")))

	failed, err := d.VerifyFiles(context.Background(), names)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc3", "doc7", "missing"}, failed)

	var warnings int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "file failed verification" {
			warnings++
		}
	}
	assert.Equal(t, 3, warnings)
}

func TestVerifyFiles_Canceled(t *testing.T) {
	d := openTestDir(t, newTestMemDir(t), "wordpass")
	require.NoError(t, d.AtomicWrite("doc1", []byte("hello")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.VerifyFiles(ctx, []string{"doc1"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestVerifyFiles_Closed(t *testing.T) {
	d, err := Open(newTestMemDir(t), []byte("wordpass"), testConfig(t))
	require.NoError(t, err)
	require.NoError(t, d.AtomicWrite("doc1", []byte("hello")))
	require.NoError(t, d.Close())

	failed, err := d.VerifyFiles(context.Background(), []string{"doc1"})
	assert.True(t, errors.Is(err, ErrClosed))
	assert.Empty(t, failed)
}

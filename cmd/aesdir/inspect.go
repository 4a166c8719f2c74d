package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/absfs/aesdir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// keyFileInfo is the public content of a key file
type keyFileInfo struct {
	Directory     string `json:"directory" yaml:"directory"`
	KeyFile       string `json:"key_file" yaml:"key_file"`
	Present       bool   `json:"present" yaml:"present"`
	Version       uint8  `json:"version,omitempty" yaml:"version,omitempty"`
	IV            string `json:"iv,omitempty" yaml:"iv,omitempty"`
	Salt          string `json:"salt,omitempty" yaml:"salt,omitempty"`
	WrappedKeyLen int    `json:"wrapped_key_bytes,omitempty" yaml:"wrapped_key_bytes,omitempty"`
	Locked        bool   `json:"locked" yaml:"locked"`
}

func newInspectCmd(outputFormat *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <dir>",
		Short: "Show the key file of an encrypted directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := inspectDir(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			handled, err := formatOutput(out, *outputFormat, info)
			if handled || err != nil {
				return err
			}

			fmt.Fprintf(out, "%s %s\n", labelFmt("Directory:"), info.Directory)
			if !info.Present {
				fmt.Fprintf(out, "%s %s\n", labelFmt("Key file:"), warnFmt("missing (not initialized)"))
				return nil
			}
			fmt.Fprintf(out, "%s %s\n", labelFmt("Key file:"), okFmt(info.KeyFile))
			fmt.Fprintf(out, "%s %d\n", labelFmt("Version:"), info.Version)
			fmt.Fprintf(out, "%s %s\n", labelFmt("IV:"), info.IV)
			fmt.Fprintf(out, "%s %s\n", labelFmt("Salt:"), info.Salt)
			fmt.Fprintf(out, "%s %d bytes\n", labelFmt("Wrapped key:"), info.WrappedKeyLen)
			if info.Locked {
				fmt.Fprintf(out, "%s %s\n", labelFmt("Lock:"), warnFmt("held"))
			} else {
				fmt.Fprintf(out, "%s %s\n", labelFmt("Lock:"), okFmt("free"))
			}
			return nil
		},
	}
}

func inspectDir(dirPath string) (*keyFileInfo, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	dir, err := aesdir.OpenOSDirectory(dirPath, &aesdir.Config{Logger: logger})
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	info := &keyFileInfo{Directory: dirPath, KeyFile: aesdir.KeyFileName}

	present, err := dir.Exists(aesdir.KeyFileName)
	if err != nil {
		return nil, err
	}
	if present {
		kf, err := aesdir.ReadKeyFile(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		info.Present = true
		info.Version = kf.Version
		info.IV = hex.EncodeToString(kf.IV)
		info.Salt = hex.EncodeToString(kf.Salt)
		info.WrappedKeyLen = len(kf.WrappedKey)
	}

	// probe the lock only when a lock file exists, so inspecting never
	// leaves one behind
	lockFile, err := dir.Exists(aesdir.KeyFileLock)
	if err != nil || !lockFile {
		return info, err
	}
	lock, err := dir.AcquireLock(aesdir.Lock{Name: aesdir.KeyFileLock})
	switch {
	case err == nil:
		lock.Release()
	case errors.Is(err, aesdir.ErrLockBusy):
		info.Locked = true
	default:
		return nil, err
	}
	return info, nil
}

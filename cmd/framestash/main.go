/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// main.go: framestash command line
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-framestash"
)

// CLI commands (see https://github.com/alecthomas/kong)
var CLI struct {
	Verbose int    `short:"v" type:"counter" help:"Increase log verbosity (-v info, -vv debug)."`
	Config  string `short:"c" type:"path" env:"FRAMESTASH_CONFIG" help:"YAML configuration file."`

	Version struct {
	} `cmd:"" help:"Show the program version."`

	Encode struct {
		Input     string `short:"i" required:"" type:"existingfile" help:"File to store."`
		Output    string `short:"o" required:"" type:"path" help:"Video to write."`
		Encrypt   bool   `short:"e" help:"Encrypt every chunk with a key derived from --password."`
		Password  string `short:"p" env:"FRAMESTASH_PASSWORD" help:"Password for --encrypt."`
		Hash      string `help:"Packet checksum: crc32 or xxhash."`
		Cipher    string `help:"Chunk cipher: aes-256-gcm or chacha20-poly1305."`
		Container string `help:"Container: y4m, ffv1 or ffmpeg:<codec>."`
		ChunkSize string `help:"Chunk size, e.g. 1MiB."`
		Width     int    `help:"Frame width in pixels."`
		Height    int    `help:"Frame height in pixels."`
		Packets   int    `help:"Packets per frame."`
		Legacy    bool   `help:"Write no header or trailer frames."`
		Checksum  bool   `help:"Print the SHA-256 of the written video."`
	} `cmd:"" help:"Store a file inside a video."`

	Decode struct {
		Input     string `short:"i" required:"" type:"existingfile" help:"Video to read."`
		Output    string `short:"o" required:"" type:"path" help:"File to restore."`
		Password  string `short:"p" env:"FRAMESTASH_PASSWORD" help:"Password of an encrypted stream."`
		Container string `help:"Container, detected when unset."`
		Checksum  bool   `help:"Print the SHA-256 of the restored file."`
	} `cmd:"" help:"Restore a file from a video."`

	Inspect struct {
		Input     string `short:"i" required:"" type:"existingfile" help:"Video to read."`
		Container string `help:"Container, detected when unset."`
	} `cmd:"" help:"Describe a video without restoring it."`
}

func main() {
	description := "framestash stores files losslessly inside the pixels of a video."
	ctx := kong.Parse(&CLI, kong.UsageOnError(), kong.Description(description))

	if err := run(ctx.Selected().Name); err != nil {
		status := framestash.StatusOf(err)
		if status == framestash.StatusCrypto {
			err = framestash.SanitizeError(err)
		}
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", status, err)
		os.Exit(1)
	}
}

func run(command string) error {
	if command == "version" {
		fmt.Printf("%s %s\n", path.Base(os.Args[0]), framestash.Version())
		fmt.Printf("%s %s/%s (%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.Compiler)
		return nil
	}

	fc, err := framestash.LoadConfigFile(CLI.Config)
	if err != nil {
		return err
	}
	opts, err := fc.Options()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(verbosity(fc.Level(logrus.WarnLevel)))
	opts = append(opts, framestash.WithLogger(log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "encode":
		return encode(ctx, opts)
	case "decode":
		return decode(ctx, opts)
	case "inspect":
		return inspect(ctx, opts)
	default:
		return fmt.Errorf("command not implemented: '%s'", command)
	}
}

// verbosity raises base by one level per -v.
func verbosity(base logrus.Level) logrus.Level {
	lvl := base + logrus.Level(CLI.Verbose) // #nosec G115 -- small counter
	if lvl > logrus.TraceLevel {
		lvl = logrus.TraceLevel
	}
	return lvl
}

func encode(ctx context.Context, opts []framestash.Option) error {
	a := CLI.Encode

	if a.Hash != "" {
		alg, err := framestash.ParseHashAlgorithm(a.Hash)
		if err != nil {
			return err
		}
		opts = append(opts, framestash.WithHashAlgorithm(alg))
	}
	if a.Cipher != "" {
		c, err := framestash.ParseCipher(a.Cipher)
		if err != nil {
			return err
		}
		opts = append(opts, framestash.WithCipher(c))
	}
	if a.Container != "" {
		opts = append(opts, framestash.WithContainer(a.Container))
	}
	if a.ChunkSize != "" {
		size, err := humanize.ParseBytes(a.ChunkSize)
		if err != nil {
			return fmt.Errorf("chunk size: %w", err)
		}
		opt, err := framestash.WithChunkSize(int(min(size, 1<<31))) // #nosec G115 -- clamped
		if err != nil {
			return err
		}
		opts = append(opts, opt)
	}
	if a.Width != 0 || a.Height != 0 || a.Packets != 0 {
		opts = append(opts, framestash.WithLayout(framestash.LayoutConfig{
			Width:           a.Width,
			Height:          a.Height,
			PacketsPerFrame: a.Packets,
		}))
	}
	if a.Encrypt {
		opts = append(opts, framestash.WithEncryption([]byte(a.Password)))
	}
	opts = append(opts,
		framestash.WithLegacyStream(a.Legacy),
		framestash.WithChecksum(a.Checksum),
	)

	res, err := framestash.Encode(ctx, a.Input, a.Output, opts...)
	if err != nil {
		return err
	}
	fmt.Printf("encoded %s into %s: %d chunks, %d packets, %d frames (%s)\n",
		a.Input, a.Output, res.ChunkCount, res.PacketCount, res.FrameCount, humanize.IBytes(res.OutputSize))
	if res.Checksum != nil {
		fmt.Printf("sha256 %s\n", hex.EncodeToString(res.Checksum))
	}
	return nil
}

func decode(ctx context.Context, opts []framestash.Option) error {
	a := CLI.Decode

	if a.Container != "" {
		opts = append(opts, framestash.WithContainer(a.Container))
	}
	if a.Password != "" {
		opts = append(opts, framestash.WithPassword([]byte(a.Password)))
	}
	opts = append(opts, framestash.WithChecksum(a.Checksum))

	res, err := framestash.Decode(ctx, a.Input, a.Output, opts...)
	if err != nil {
		return err
	}
	fmt.Printf("decoded %s into %s: %s from %d chunks\n",
		a.Input, a.Output, humanize.IBytes(res.OutputSize), res.ChunkCount)
	if res.Checksum != nil {
		fmt.Printf("sha256 %s\n", hex.EncodeToString(res.Checksum))
	}
	return nil
}

func inspect(ctx context.Context, opts []framestash.Option) error {
	a := CLI.Inspect

	if a.Container != "" {
		opts = append(opts, framestash.WithContainer(a.Container))
	}
	info, err := framestash.Inspect(ctx, a.Input, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("container:  %s\n", info.Container)
	fmt.Printf("layout:     %s\n", info.Layout)
	fmt.Printf("frames:     %d\n", info.Frames)
	fmt.Printf("packets:    %d (%d rejected)\n", info.Packets, info.Rejected)
	fmt.Printf("chunks:     %d of %d complete\n", info.CompleteChunks, info.ExpectedChunks)
	fmt.Printf("encrypted:  %v\n", info.Encrypted)
	if h := info.Header; h != nil {
		fmt.Printf("hash:       %s\n", h.Hash)
		fmt.Printf("file id:    %s\n", hex.EncodeToString(h.FileID[:]))
		fmt.Printf("chunk size: %s\n", humanize.IBytes(uint64(h.ChunkSize)))
		if h.Encrypted {
			fmt.Printf("cipher:     %s (%s)\n", h.Cipher, h.KDF.Algorithm)
		}
	} else {
		fmt.Println("header:     none (legacy stream)")
	}
	if m := info.Manifest; m != nil {
		fmt.Printf("input size: %s\n", humanize.IBytes(m.InputSize))
	}
	if !info.Complete() {
		return fmt.Errorf("%w: %d chunks missing", framestash.ErrIncomplete, info.ExpectedChunks-info.CompleteChunks)
	}
	return nil
}

// Command mount_reffs mounts RefFS, the in-memory reference filesystem,
// at a directory, the way the teacher's samples/mount_memfs mounts
// memfs: parse flags, build a server, call fuse.Mount, wait for
// unmount. RefFS additionally parses "-o key=value" mount options
// (spec §3) and can daemonize itself with -b, the way FUSE-based mount
// helpers conventionally do (jacobsa/daemonize, used the same way
// gcsfuse's cmd/mount_gcsfuse does).
package main

import (
	"context"
	"log"
	"os"

	"github.com/jacobsa/daemonize"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/spf13/cobra"

	"github.com/sbu-fsl/RefFS/reffs"
	"github.com/sbu-fsl/RefFS/reffs/reffsfuse"
)

var (
	flagOptions   string
	flagDaemonize bool
	flagSubtype   string
)

func main() {
	root := &cobra.Command{
		Use:   "mount_reffs <mount-point>",
		Short: "Mount RefFS, an in-memory reference POSIX filesystem, at the given directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runMount,
	}

	flags := root.Flags()
	flags.StringVarP(&flagOptions, "options", "o", "", "comma-separated mount options (size=, inodes=, subtype=)")
	flags.BoolVarP(&flagDaemonize, "background", "b", false, "daemonize after a successful mount")
	flags.StringVar(&flagSubtype, "subtype", "reffs", "filesystem subtype reported to the kernel")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runMount(cmd *cobra.Command, args []string) error {
	mountPoint := args[0]

	opts, err := parseMountOptions(flagOptions)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("subtype") || opts.Subtype == "" {
		opts.Subtype = flagSubtype
	}

	if flagDaemonize && os.Getenv("REFFS_DAEMONIZED") == "" {
		return daemonize.Run(os.Args[0], os.Args[1:], []string{"REFFS_DAEMONIZED=1"}, os.Stdout)
	}

	store := reffs.NewStore(reffs.Options{
		TotalBlocks: opts.Size / 512,
		TotalInodes: opts.Inodes,
	})
	adapter := reffsfuse.New(store)

	cfg := &fuse.MountConfig{
		FSName:                  "reffs",
		Subtype:                 opts.Subtype,
		DisableWritebackCaching: true,
	}

	mfs, err := fuse.Mount(mountPoint, fuseutil.NewFileSystemServer(adapter), cfg)
	if err != nil {
		return err
	}
	adapter.SetInvalidator(mfs)

	ctl, err := newControlServer(mountPoint, store, adapter)
	if err != nil {
		return err
	}
	defer ctl.Close()
	go ctl.Serve()

	return mfs.Join(context.Background())
}

package lock

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/ValentinKolb/dLock/cmd/util"
	"github.com/ValentinKolb/dLock/lib/rowlock"
	"github.com/ValentinKolb/dLock/lib/storage"
	"github.com/ValentinKolb/dLock/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore storage.IWideStore

	lockPrefix       string
	stalenessSeconds uint64
	lockTTL          uint64
	failOnStale      bool
	holdLock         bool
	consistencyName  string

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:               "lock",
		Short:             "Perform row lock operations",
		PersistentPreRunE: setupLockClient,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [row]",
		Short: "Acquire a lock on a row",
		Long:  "Acquire a lock on a row. On success the name of the lock cell is printed; pass it to the release command to release the lock later.",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [row] [cell]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the row key and the lock cell name printed by the acquire command.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRelease,
	}

	// releaseExpiredCmd represents the release-expired command
	releaseExpiredCmd = &cobra.Command{
		Use:   "release-expired [row]",
		Short: "Release only expired lock cells of a row",
		Args:  cobra.ExactArgs(1),
		RunE:  runReleaseExpired,
	}

	// releaseAllCmd represents the release-all command
	releaseAllCmd = &cobra.Command{
		Use:   "release-all [row]",
		Short: "Release every lock cell of a row, including live holders",
		Args:  cobra.ExactArgs(1),
		RunE:  runReleaseAll,
	}

	// readCmd represents the read command
	readCmd = &cobra.Command{
		Use:   "read [row]",
		Short: "Read the current lock cells of a row",
		Args:  cobra.ExactArgs(1),
		RunE:  runRead,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to lock command
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)
	LockCommands.AddCommand(releaseExpiredCmd)
	LockCommands.AddCommand(releaseAllCmd)
	LockCommands.AddCommand(readCmd)

	// Add common RPC flags to the lock command
	util.SetupRPCClientFlags(LockCommands)

	LockCommands.PersistentFlags().Int("table", 100, util.WrapString("ID of the table to connect to"))
	LockCommands.PersistentFlags().StringVar(&lockPrefix, "prefix", rowlock.DefaultLockPrefix, util.WrapString("Cell name prefix that distinguishes lock cells from data cells"))
	LockCommands.PersistentFlags().Uint64Var(&stalenessSeconds, "staleness", uint64(rowlock.DefaultStalenessWindow/time.Second), util.WrapString("Seconds after which an unreleased lock cell becomes reclaimable by others"))
	LockCommands.PersistentFlags().StringVar(&consistencyName, "consistency", "quorum", util.WrapString("Consistency level for lock operations (one, quorum, local-quorum, each-quorum, all)"))

	// Add flags specific to acquire
	acquireCmd.Flags().Uint64Var(&lockTTL, "ttl", 0, "Storage-side TTL of the lock cell in seconds (0 for none)")
	acquireCmd.Flags().BoolVar(&failOnStale, "fail-on-stale", false, util.WrapString("Fail instead of reclaiming stale lock cells, preserving them for inspection"))
	acquireCmd.Flags().BoolVar(&holdLock, "hold", false, util.WrapString("Keep the lock held until SIGINT or SIGTERM, then release it before exiting"))
}

// setupLockClient initializes the wide-column store client
func setupLockClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	tableID := util.GetTableID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the store client
	rpcStore, err = client.NewRPCWideStore(
		tableID,
		*config,
		t,
		s,
	)

	return err
}

// newLock builds a lock for the given row from the configured flags
func newLock(rowKey string) (rowlock.ILock, error) {
	cl, err := storage.ParseConsistencyLevel(consistencyName)
	if err != nil {
		return nil, err
	}

	opts := rowlock.DefaultLockOptions()
	opts.Prefix = lockPrefix
	opts.Consistency = cl
	opts.StalenessWindow = time.Duration(stalenessSeconds) * time.Second
	opts.TTL = lockTTL
	opts.FailOnStaleLock = failOnStale

	return rowlock.NewRowLock(rpcStore, rowKey, opts)
}

// runAcquire handles the acquire lock command
func runAcquire(_ *cobra.Command, args []string) error {
	rowKey := args[0]

	lock, err := newLock(rowKey)
	if err != nil {
		return err
	}

	// Attempt to acquire the lock
	err = lock.Acquire()

	var busyErr *rowlock.BusyLockError
	if errors.As(err, &busyErr) {
		fmt.Printf("acquired=false, holder=%s\n", busyErr.Cell)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %v", err)
	}

	fmt.Printf("acquired=true, cell=%s\n", lock.LockCell())

	if holdLock {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		fmt.Println("holding lock, press ctrl+c to release")
		<-sigCh

		if err := lock.Release(); err != nil {
			return fmt.Errorf("failed to release lock: %v", err)
		}
		fmt.Println("released=true")
	}

	return nil
}

// runRelease handles the release lock command
func runRelease(_ *cobra.Command, args []string) error {
	rowKey := args[0]
	cellName := args[1]

	cl, err := storage.ParseConsistencyLevel(consistencyName)
	if err != nil {
		return err
	}

	// Delete the named lock cell
	if err := rpcStore.BatchDelete(rowKey, []string{cellName}, cl); err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}

	fmt.Printf("released=true\n")
	return nil
}

// runReleaseExpired handles the release-expired command
func runReleaseExpired(_ *cobra.Command, args []string) error {
	lock, err := newLock(args[0])
	if err != nil {
		return err
	}

	snapshot, err := lock.ReleaseExpiredLocks()
	if err != nil {
		return fmt.Errorf("failed to release expired locks: %v", err)
	}

	printCells(snapshot)
	return nil
}

// runReleaseAll handles the release-all command
func runReleaseAll(_ *cobra.Command, args []string) error {
	lock, err := newLock(args[0])
	if err != nil {
		return err
	}

	snapshot, err := lock.ReleaseAllLocks()
	if err != nil {
		return fmt.Errorf("failed to release locks: %v", err)
	}

	printCells(snapshot)
	return nil
}

// runRead handles the read command
func runRead(_ *cobra.Command, args []string) error {
	lock, err := newLock(args[0])
	if err != nil {
		return err
	}

	cells, err := lock.ReadLockCells()
	if err != nil {
		return fmt.Errorf("failed to read lock cells: %v", err)
	}

	printCells(cells)
	return nil
}

// printCells prints a lock cell set sorted by cell name
func printCells(cells map[string]int64) {
	if len(cells) == 0 {
		fmt.Println("no lock cells")
		return
	}

	names := make([]string, 0, len(cells))
	for name := range cells {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		expiration := cells[name]
		if expiration == 0 {
			fmt.Printf("%s\tpermanent\n", name)
		} else {
			fmt.Printf("%s\texpires %s\n", name, time.UnixMicro(expiration).Format(time.RFC3339))
		}
	}
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	customerapp "github.com/erp/customer/internal/application/customer"
	"github.com/erp/customer/internal/domain/customer"
)

var errUsage = errors.New("usage")

// command runs one CLI operation against the wired services
type command struct {
	name  string
	args  string
	help  string
	nargs int
	run   func(ctx context.Context, a *app, io ioStreams, args []string) error
}

type ioStreams struct {
	in  io.Reader
	out io.Writer
}

var commands = []command{
	{"get", "<id>", "Print a customer", 1, runGet},
	{"list", "", "Print every customer", 0, runList},
	{"find", "<key=value>...", "Print customers matching query parameters", -1, runFind},
	{"export", "", "Stream every customer as JSON lines", 0, runExport},
	{"create", "<file|->", "Create a customer with its account from JSON", 1, runCreate},
	{"seed", "<count> [seed]", "Create fake customers", -1, runSeed},
	{"update", "<id> <version> <file|->", "Replace a customer from JSON", 3, runUpdate},
	{"patch", "<id> <version> <file|->", "Apply JSON patch operations", 3, runPatch},
	{"delete", "<id>", "Delete a customer by id", 1, runDelete},
	{"delete-email", "<email>", "Delete a customer by email", 1, runDeleteEmail},
	{"count", "", "Print the number of customers", 0, runCount},
	{"lastnames", "<prefix>", "Print last names starting with prefix", 1, runLastNames},
	{"emails", "<prefix>", "Print emails starting with prefix", 1, runEmails},
	{"version", "<id>", "Print the version of a customer", 1, runVersion},
	{"account", "<username>", "Print the account linked to a customer", 1, runAccount},
	{"verify", "<username>", "Check a password read from stdin", 1, runVerify},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// dispatch validates the argument count and runs the named command
func dispatch(ctx context.Context, a *app, streams ioStreams, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	rest := args[1:]
	if cmd.nargs >= 0 && len(rest) != cmd.nargs {
		return fmt.Errorf("%w: %s %s", errUsage, cmd.name, cmd.args)
	}
	return cmd.run(ctx, a, streams, rest)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readInput(in io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(in)
	}
	return os.ReadFile(name)
}

func decodeInput(in io.Reader, name string, v any) error {
	data, err := readInput(in, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", name, err)
	}
	return nil
}

var errNoCustomer = errors.New("customer not found")

func printCustomer(w io.Writer, c *customer.Customer) error {
	if c == nil {
		return errNoCustomer
	}
	return printJSON(w, customerapp.ToCustomerResponse(c))
}

func runGet(ctx context.Context, a *app, s ioStreams, args []string) error {
	c, err := a.service.FindByID(ctx, args[0])
	if err != nil {
		return err
	}
	return printCustomer(s.out, c)
}

func runList(ctx context.Context, a *app, s ioStreams, _ []string) error {
	all, err := a.service.FindAll(ctx)
	if err != nil {
		return err
	}
	return printJSON(s.out, customerapp.ToCustomerResponses(all))
}

// parseQuery turns key=value arguments into query parameters. Repeated keys
// keep every value.
func parseQuery(args []string) (map[string][]string, error) {
	params := make(map[string][]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", errUsage, arg)
		}
		params[key] = append(params[key], value)
	}
	return params, nil
}

func runFind(ctx context.Context, a *app, s ioStreams, args []string) error {
	params, err := parseQuery(args)
	if err != nil {
		return err
	}
	found, err := a.service.Find(ctx, params)
	if err != nil {
		return err
	}
	return printJSON(s.out, customerapp.ToCustomerResponses(found))
}

func runExport(ctx context.Context, a *app, s ioStreams, _ []string) error {
	enc := json.NewEncoder(s.out)
	return a.service.Stream(ctx, func(c customer.Customer) error {
		return enc.Encode(customerapp.ToCustomerResponse(&c))
	})
}

func runCreate(ctx context.Context, a *app, s ioStreams, args []string) error {
	var req customerapp.CreateCustomerRequest
	if err := decodeInput(s.in, args[0], &req); err != nil {
		return err
	}
	created, err := a.service.Create(ctx, req)
	if err != nil {
		return err
	}
	return printCustomer(s.out, created)
}

func runSeed(ctx context.Context, a *app, s ioStreams, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: seed <count> [seed]", errUsage)
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count <= 0 {
		return fmt.Errorf("%w: count must be a positive integer", errUsage)
	}
	var seed uint64
	if len(args) == 2 {
		if seed, err = strconv.ParseUint(args[1], 10, 64); err != nil {
			return fmt.Errorf("%w: seed must be an unsigned integer", errUsage)
		}
	}

	gen := newFakeCustomers(seed)
	for i := 0; i < count; i++ {
		created, err := a.service.Create(ctx, gen.next())
		if err != nil {
			return fmt.Errorf("seed customer %d: %w", i+1, err)
		}
		fmt.Fprintln(s.out, created.ID)
	}
	return nil
}

func runUpdate(ctx context.Context, a *app, s ioStreams, args []string) error {
	var candidate customer.Customer
	if err := decodeInput(s.in, args[2], &candidate); err != nil {
		return err
	}
	updated, err := a.service.Update(ctx, candidate, args[0], args[1])
	if err != nil {
		return err
	}
	return printCustomer(s.out, updated)
}

func runPatch(ctx context.Context, a *app, s ioStreams, args []string) error {
	var ops []customer.PatchOperation
	if err := decodeInput(s.in, args[2], &ops); err != nil {
		return err
	}
	patched, err := a.service.Patch(ctx, args[0], args[1], ops)
	if err != nil {
		return err
	}
	return printCustomer(s.out, patched)
}

func runDelete(ctx context.Context, a *app, s ioStreams, args []string) error {
	deleted, err := a.service.DeleteByID(ctx, args[0])
	if err != nil {
		return err
	}
	if !deleted {
		return errNoCustomer
	}
	fmt.Fprintln(s.out, "deleted", args[0])
	return nil
}

func runDeleteEmail(ctx context.Context, a *app, s ioStreams, args []string) error {
	if err := a.service.DeleteByEmail(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "deleted", customer.NormalizeEmail(args[0]))
	return nil
}

func runCount(ctx context.Context, a *app, s ioStreams, _ []string) error {
	n, err := a.values.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, n)
	return nil
}

func runLastNames(ctx context.Context, a *app, s ioStreams, args []string) error {
	names, err := a.values.FindLastNamesByPrefix(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(s.out, names)
}

func runEmails(ctx context.Context, a *app, s ioStreams, args []string) error {
	emails, err := a.values.FindEmailsByPrefix(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(s.out, emails)
}

func runVersion(ctx context.Context, a *app, s ioStreams, args []string) error {
	version, found, err := a.values.FindVersionByID(ctx, args[0])
	if err != nil {
		return err
	}
	if !found {
		return errNoCustomer
	}
	fmt.Fprintln(s.out, customerapp.FormatVersion(version))
	return nil
}

func runAccount(ctx context.Context, a *app, s ioStreams, args []string) error {
	account, err := a.accounts.FindByUsername(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(s.out, account)
}

var errBadPassword = errors.New("password does not match")

// runVerify reads the password from the first line of stdin so it never
// appears in the process list.
func runVerify(ctx context.Context, a *app, s ioStreams, args []string) error {
	line, err := bufio.NewReader(s.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	ok, err := a.accounts.VerifyPassword(ctx, args[0], strings.TrimRight(line, "\r\n"))
	if err != nil {
		return err
	}
	if !ok {
		return errBadPassword
	}
	fmt.Fprintln(s.out, "ok")
	return nil
}

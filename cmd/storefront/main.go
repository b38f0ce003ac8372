package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-storefront-client/auth"
	"github.com/jrsteele09/go-storefront-client/cart"
	"github.com/jrsteele09/go-storefront-client/catalog"
	"github.com/jrsteele09/go-storefront-client/internal/config"
	"github.com/jrsteele09/go-storefront-client/storefront"
)

const usage = `commands:
  login <email> <password>          sign in and merge the guest cart
  signup <email> <password> <name>  create an account and sign in
  oauth <provider>                  print the provider sign in URL
  resume                            continue the saved session
  whoami                            show the current session
  products [search]                 list products
  add <productId> [quantity]        add to the cart
  update <productId> <quantity>     set a cart line quantity
  remove <productId>                drop a cart line
  cart                              show the cart
  sync                              merge the cart into the server cart
  checkout                          place an order for the cart
  orders                            list orders
  users                             list accounts (admin)
  logout                            end the session
  quit`

// terminalNavigator has no login screen to show; it tells the user instead.
// The prompt counts as the login screen until the next successful sign in.
type terminalNavigator struct {
	lock  sync.Mutex
	out   io.Writer
	shown bool
}

func (n *terminalNavigator) AtLogin() bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.shown
}

func (n *terminalNavigator) RedirectToLogin() {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.shown = true
	fmt.Fprintln(n.out, "Your session has expired, please log in again.")
}

func (n *terminalNavigator) signedIn() {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.shown = false
}

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	c, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogger(c.GetLogLevel())
	displayAppname(c.GetAppName())

	nav := &terminalNavigator{out: os.Stdout}
	client, err := storefront.New(c, storefront.WithNavigator(nav))
	if err != nil {
		log.Fatal().Err(err).Msg("Error building storefront client")
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if client.Session.IsAuthenticated() {
		if _, err := client.Resume(ctx); err != nil {
			fmt.Println("Could not resume the saved session:", err)
		}
	}

	sh := &shell{client: client, nav: nav, out: os.Stdout}
	sh.run(ctx, os.Stdin)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}

type shell struct {
	client *storefront.Client
	nav    *terminalNavigator
	out    io.Writer
}

func (sh *shell) run(ctx context.Context, in io.Reader) {
	fmt.Fprintln(sh.out, usage)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(sh.out, "> ")
		if !scanner.Scan() || ctx.Err() != nil {
			return
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		if err := sh.exec(ctx, args[0], args[1:]); err != nil {
			fmt.Fprintln(sh.out, "error:", err)
		}
	}
}

func (sh *shell) exec(ctx context.Context, cmd string, args []string) error {
	c := sh.client
	switch cmd {
	case "login":
		if len(args) != 2 {
			return fmt.Errorf("usage: login <email> <password>")
		}
		s, err := c.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		sh.nav.signedIn()
		fmt.Fprintf(sh.out, "Signed in as %s (%s)\n", s.User.Email, s.Role)
		return sh.printCart(c.Cart.Cart())

	case "signup":
		if len(args) < 3 {
			return fmt.Errorf("usage: signup <email> <password> <name>")
		}
		s, err := c.Signup(ctx, auth.SignupRequest{Email: args[0], Password: args[1], FullName: strings.Join(args[2:], " ")})
		if err != nil {
			return err
		}
		sh.nav.signedIn()
		fmt.Fprintf(sh.out, "Welcome, %s\n", s.User.FullName)
		return nil

	case "oauth":
		if len(args) != 1 {
			return fmt.Errorf("usage: oauth <provider>")
		}
		fmt.Fprintln(sh.out, c.Auth.OAuthAuthorizationURL(args[0]))
		return nil

	case "resume":
		s, err := c.Resume(ctx)
		if err != nil {
			return err
		}
		sh.nav.signedIn()
		fmt.Fprintf(sh.out, "Resumed session for %s\n", s.User.Email)
		return nil

	case "whoami":
		s := c.Session.Current()
		if !c.Session.IsAuthenticated() || s.User == nil {
			fmt.Fprintln(sh.out, "Guest")
			return nil
		}
		fmt.Fprintf(sh.out, "%s <%s> role=%s\n", s.User.FullName, s.User.Email, s.RawRole)
		return nil

	case "products":
		products, err := c.Catalog.Products(ctx, catalog.ProductQuery{Search: strings.Join(args, " ")})
		if err != nil {
			return err
		}
		return sh.printProducts(products)

	case "add":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: add <productId> [quantity]")
		}
		qty := 1
		if len(args) == 2 {
			var err error
			if qty, err = strconv.Atoi(args[1]); err != nil {
				return err
			}
		}
		p, err := c.Catalog.Product(ctx, args[0])
		if err != nil {
			return err
		}
		updated, err := c.Cart.AddItem(ctx, cart.Product{ID: p.ID, Name: p.Name, Price: p.Price, ImageURL: p.ImageURL, Category: p.Category}, qty)
		if err != nil {
			return err
		}
		return sh.printCart(updated)

	case "update":
		if len(args) != 2 {
			return fmt.Errorf("usage: update <productId> <quantity>")
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		updated, err := c.Cart.UpdateQuantity(ctx, args[0], qty)
		if err != nil {
			return err
		}
		return sh.printCart(updated)

	case "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: remove <productId>")
		}
		updated, err := c.Cart.RemoveItem(ctx, args[0])
		if err != nil {
			return err
		}
		return sh.printCart(updated)

	case "cart":
		return sh.printCart(c.Cart.Cart())

	case "sync":
		updated, err := c.Cart.SyncToServer(ctx)
		if err != nil {
			return err
		}
		return sh.printCart(updated)

	case "checkout":
		o, err := c.Checkout(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "Order %s placed, total $%.2f\n", o.ID, o.TotalAmount)
		return nil

	case "orders":
		list, err := c.Orders.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tITEMS\tTOTAL")
		for _, o := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t$%.2f\n", o.ID, o.Status, len(o.Items), o.TotalAmount)
		}
		return w.Flush()

	case "users":
		accounts, err := c.Auth.Users(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tNAME\tROLE")
		for _, a := range accounts {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.Email, a.FullName, a.RawRole)
		}
		return w.Flush()

	case "logout":
		c.Logout()
		fmt.Fprintln(sh.out, "Signed out")
		return nil

	case "help":
		fmt.Fprintln(sh.out, usage)
		return nil

	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func (sh *shell) printProducts(products []catalog.Product) error {
	w := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t$%.2f\t%s\n", p.ID, p.Name, p.Price, catalog.StockStatus(p).Label)
	}
	return w.Flush()
}

func (sh *shell) printCart(c cart.Cart) error {
	if c.IsEmpty() {
		fmt.Fprintln(sh.out, "Cart is empty")
		return nil
	}
	w := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQTY\tPRICE")
	for _, it := range c.Items {
		fmt.Fprintf(w, "%s\t%s\t%d\t$%.2f\n", it.ProductID, it.Name, it.Quantity, it.Price)
	}
	fmt.Fprintf(w, "\t%d items\t\t$%.2f\n", c.Count(), c.Subtotal())
	return w.Flush()
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"campusmart/adapters/s3"
	"campusmart/market"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"signup", "signup --email <email> --nickname <name> [--password <pw>]", runSignUp},
	{"login", "login --email <email> [--password <pw>]", runLogin},
	{"logout", "logout", runLogout},
	{"whoami", "whoami", runWhoAmI},
	{"resend", "resend --email <email>", runResend},
	{"confirm", "confirm <token>", runConfirm},
	{"categories", "categories", runCategories},
	{"list", "list [--category <id>]", runList},
	{"search", "search <keyword>", runSearch},
	{"show", "show <item-id>", runShow},
	{"publish", "publish --title <t> --price <p> --category <id> --publisher <name> --contact <c> [--description <d>] [--image <file>]", runPublish},
	{"sold", "sold <item-id>", runSold},
	{"remove", "remove <item-id>", runRemove},
	{"mine", "mine [--status active|sold|removed|all]", runMine},
}

func findCommand(name string) (command, bool) {
	return lo.Find(commands, func(c command) bool { return c.name == name })
}

var errUsage = errors.New("invalid usage")

func newFlagSet(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ContinueOnError)
}

// oneArg 取得唯一的位置參數
func oneArg(args []string, what string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("%w: expected one %s", errUsage, what)
	}
	return strings.TrimSpace(args[0]), nil
}

// password 沒有用參數指定時從標準輸入讀一行
func (a *app) password(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("%w: password is required", errUsage)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runSignUp(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("signup")
	email := fs.String("email", "", "")
	nickname := fs.String("nickname", "", "")
	pw := fs.String("password", "", "")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	password, err := a.password(*pw)
	if err != nil {
		return err
	}
	result, err := a.auth.SignUp(ctx, *email, password, map[string]string{"nickname": *nickname})
	if err != nil {
		return err
	}
	if result.Session == nil {
		return a.printf("Account created. Check %s for the confirmation link.\n", result.User.Email)
	}
	return a.printf("Account created. Signed in as %s.\n", result.User.Email)
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "")
	pw := fs.String("password", "", "")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	password, err := a.password(*pw)
	if err != nil {
		return err
	}
	s, err := a.auth.SignInWithPassword(ctx, *email, password)
	if err != nil {
		return err
	}
	return a.printf("Signed in as %s.\n", s.User.Email)
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if _, err := a.current(ctx); err != nil {
		return err
	}
	if err := a.identity.Logout(ctx); err != nil {
		return err
	}
	return a.printf("Signed out.\n")
}

func runWhoAmI(ctx context.Context, a *app, _ []string) error {
	id, err := a.current(ctx)
	if err != nil {
		return err
	}
	if a.jsonMode {
		return a.printJSON(map[string]any{"authenticated": id.IsAuthenticated(), "id": id.ID, "email": id.Email, "nickname": id.Nickname})
	}
	if !id.IsAuthenticated() {
		return a.printf("Not signed in.\n")
	}
	return a.printf("%s (%s) id=%s\n", id.Email, lo.Ternary(id.Nickname != "", id.Nickname, "-"), id.ID)
}

func runResend(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("resend")
	email := fs.String("email", "", "")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := a.auth.ResendSignupVerification(ctx, *email); err != nil {
		return err
	}
	return a.printf("If %s is waiting for confirmation, a new link has been sent.\n", *email)
}

func runConfirm(ctx context.Context, a *app, args []string) error {
	token, err := oneArg(args, "token")
	if err != nil {
		return err
	}
	s, err := a.auth.ConfirmEmail(ctx, token)
	if err != nil {
		return err
	}
	return a.printf("Email confirmed. Signed in as %s.\n", s.User.Email)
}

func runCategories(ctx context.Context, a *app, _ []string) error {
	categories, err := a.listings.ListCategories(ctx)
	if err != nil {
		return err
	}
	if a.jsonMode {
		return a.printJSON(categories)
	}
	return a.printCategories(categories)
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("list")
	category := fs.String("category", "", "")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	var (
		items []market.Item
		err   error
	)
	if *category != "" {
		items, err = a.listings.ListItemsByCategory(ctx, *category)
	} else {
		items, err = a.listings.ListActiveItems(ctx)
	}
	if err != nil {
		return err
	}
	return a.printItems(items)
}

func runSearch(ctx context.Context, a *app, args []string) error {
	items, err := a.listings.SearchItems(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	return a.printItems(items)
}

// loadItem 讀取商品，不存在時回傳錯誤
func (a *app) loadItem(ctx context.Context, args []string) (*market.Item, error) {
	id, err := oneArg(args, "item id")
	if err != nil {
		return nil, err
	}
	item, err := a.listings.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", id, market.ErrNotFound)
	}
	return item, nil
}

func runShow(ctx context.Context, a *app, args []string) error {
	item, err := a.loadItem(ctx, args)
	if err != nil {
		return err
	}
	viewer, err := a.current(ctx)
	if err != nil {
		return err
	}
	seller := a.listings.ResolveSeller(ctx, item.SellerID, viewer)
	// 商品上填寫的刊登者資訊優先
	if item.SellerName != nil && *item.SellerName != "" {
		seller.Name = *item.SellerName
	}
	if item.SellerContact != nil && *item.SellerContact != "" {
		seller.Contact = *item.SellerContact
	}
	canManage := market.CanManage(viewer, *item)
	if a.jsonMode {
		return a.printJSON(map[string]any{"item": item, "seller": seller, "can_manage": canManage})
	}
	return a.printItemDetail(*item, seller, canManage)
}

func runPublish(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("publish")
	title := fs.String("title", "", "")
	description := fs.String("description", "", "")
	price := fs.String("price", "", "")
	category := fs.String("category", "", "")
	publisher := fs.String("publisher", "", "defaults to your nickname")
	contact := fs.String("contact", "", "")
	imagePath := fs.String("image", "", "jpeg or png, at most 5 MB")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	// 無法解析的價格交給驗證回報
	amount, err := decimal.NewFromString(strings.TrimSpace(*price))
	if err != nil {
		amount = decimal.Zero
	}
	draft := market.Draft{
		Title:       *title,
		Description: *description,
		Price:       amount,
		Category:    *category,
		Publisher:   *publisher,
		Contact:     *contact,
	}
	if *imagePath != "" {
		img, err := readImage(*imagePath)
		if err != nil {
			return err
		}
		draft.Image = img
	}

	identity, err := a.current(ctx)
	if err != nil {
		return err
	}
	item, err := a.lifecycle.Publish(ctx, draft, identity)
	if err != nil {
		return err
	}
	if a.jsonMode {
		return a.printJSON(item)
	}
	if !identity.IsAuthenticated() {
		return a.printf("Published %s as guest %s. Sign in to manage your items.\n", item.ID, item.SellerID)
	}
	return a.printf("Published %s.\n", item.ID)
}

func readImage(path string) (*market.Image, error) {
	const op = "cli.readImage"
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to open image, err=%w", op, err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to stat image, err=%w", op, err)
	}
	// 多讀一點，超過上限時由驗證回報欄位錯誤
	data, err := s3.ReadAllLimited(f, market.MaxImageSize+1)
	if err != nil && !s3.IsReachLimit(err) {
		return nil, fmt.Errorf("[%s] Fail to read image, err=%w", op, err)
	}
	return &market.Image{Name: filepath.Base(path), Size: stat.Size(), Data: data}, nil
}

func runSold(ctx context.Context, a *app, args []string) error {
	return a.transition(ctx, args, a.lifecycle.MarkSold, "Marked %s as sold.\n")
}

func runRemove(ctx context.Context, a *app, args []string) error {
	return a.transition(ctx, args, a.lifecycle.RemoveItem, "Removed %s.\n")
}

func (a *app) transition(
	ctx context.Context,
	args []string,
	apply func(context.Context, market.Item, market.Identity) (market.Item, error),
	message string,
) error {
	item, err := a.loadItem(ctx, args)
	if err != nil {
		return err
	}
	identity, err := a.current(ctx)
	if err != nil {
		return err
	}
	updated, err := apply(ctx, *item, identity)
	if err != nil {
		return err
	}
	if a.jsonMode {
		return a.printJSON(updated)
	}
	return a.printf(message, updated.ID)
}

func runMine(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("mine")
	status := fs.String("status", string(market.StatusAll), "")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	identity, err := a.current(ctx)
	if err != nil {
		return err
	}
	items, err := a.listings.ListOwnItems(ctx, identity, market.StatusFilter(*status))
	if err != nil {
		return err
	}
	all := items
	if *status != string(market.StatusAll) {
		if all, err = a.listings.ListOwnItems(ctx, identity, market.StatusAll); err != nil {
			return err
		}
	}
	counts := market.CountByStatus(all)
	if a.jsonMode {
		return a.printJSON(map[string]any{"items": items, "count": len(items), "counts": counts})
	}
	if err := a.printItems(items); err != nil {
		return err
	}
	statuses := lo.Keys(counts)
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	parts := lo.Map(statuses, func(s market.Status, _ int) string {
		return fmt.Sprintf("%s=%d", s, counts[s])
	})
	return a.printf("%s\n", strings.Join(parts, " "))
}

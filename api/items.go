package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"campusmart/adapters/s3"
	"campusmart/market"
)

type itemResponse struct {
	Item      market.Item `json:"item"`
	CanManage bool        `json:"can_manage"`
}

type itemsResponse struct {
	Items  []market.Item         `json:"items"`
	Count  int                   `json:"count"`
	Counts map[market.Status]int `json:"counts,omitempty"`
}

// GET /categories
func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.listings.ListCategories(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GET /items，可用 ?category= 或 ?q= 篩選
func (s *Server) listItems(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		items []market.Item
		err   error
	)
	switch {
	case c.Query("q") != "":
		items, err = s.listings.SearchItems(ctx, c.Query("q"))
	case c.Query("category") != "":
		items, err = s.listings.ListItemsByCategory(ctx, c.Query("category"))
	default:
		items, err = s.listings.ListActiveItems(ctx)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, itemsResponse{Items: items, Count: len(items)})
}

// loadItem 取得路徑中的商品，不存在時直接回應 404
func (s *Server) loadItem(c *gin.Context) (*market.Item, bool) {
	item, err := s.listings.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	if item == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: string(market.ErrNotFound), Message: "item not found"})
		return nil, false
	}
	return item, true
}

// GET /items/:id
func (s *Server) getItem(c *gin.Context) {
	item, ok := s.loadItem(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, itemResponse{Item: *item, CanManage: market.CanManage(currentIdentity(c), *item)})
}

// GET /items/:id/seller
func (s *Server) getSeller(c *gin.Context) {
	item, ok := s.loadItem(c)
	if !ok {
		return
	}
	info := s.listings.ResolveSeller(c.Request.Context(), item.SellerID, currentIdentity(c))
	// 刊登時填寫的資訊優先
	if item.SellerName != nil && *item.SellerName != "" {
		info.Name = *item.SellerName
	}
	if item.SellerContact != nil && *item.SellerContact != "" {
		info.Contact = *item.SellerContact
	}
	c.JSON(http.StatusOK, info)
}

// POST /items，multipart 表單，圖片欄位為 image
func (s *Server) publishItem(c *gin.Context) {
	price, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("price")))
	if err != nil {
		price = decimal.Zero
	}
	draft := market.Draft{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Price:       price,
		Category:    c.PostForm("category"),
		Publisher:   c.PostForm("publisher"),
		Contact:     c.PostForm("contact"),
	}

	if header, err := c.FormFile("image"); err == nil {
		file, err := header.Open()
		if err != nil {
			s.writeError(c, err)
			return
		}
		defer file.Close()
		// 多讀一點，讓超過上限的檔案由驗證回報欄位錯誤
		data, err := s3.ReadAllLimited(file, market.MaxImageSize+1)
		if err != nil && !s3.IsReachLimit(err) {
			s.writeError(c, err)
			return
		}
		draft.Image = &market.Image{Name: header.Filename, Size: header.Size, Data: data}
	}

	item, err := s.lifecycle.Publish(c.Request.Context(), draft, currentIdentity(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Location", "/items/"+item.ID)
	c.JSON(http.StatusCreated, item)
}

// POST /items/:id/sold
func (s *Server) markSold(c *gin.Context) {
	item, ok := s.loadItem(c)
	if !ok {
		return
	}
	updated, err := s.lifecycle.MarkSold(c.Request.Context(), *item, currentIdentity(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DELETE /items/:id，只會將狀態改為 removed
func (s *Server) removeItem(c *gin.Context) {
	item, ok := s.loadItem(c)
	if !ok {
		return
	}
	updated, err := s.lifecycle.RemoveItem(c.Request.Context(), *item, currentIdentity(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// GET /me/items?status=all|active|sold|removed
func (s *Server) listOwnItems(c *gin.Context) {
	ctx := c.Request.Context()
	identity := currentIdentity(c)
	items, err := s.listings.ListOwnItems(ctx, identity, market.StatusFilter(c.Query("status")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	// counts 一律以全部商品計算
	all := items
	if filter := c.Query("status"); filter != "" && filter != string(market.StatusAll) {
		if all, err = s.listings.ListOwnItems(ctx, identity, market.StatusAll); err != nil {
			s.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, itemsResponse{Items: items, Count: len(items), Counts: market.CountByStatus(all)})
}

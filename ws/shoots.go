package ws

import (
	"net/http"
	"sync"

	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/types"
)

const (
	kindShoots = "shoots"
	kindShoot  = "shoot"

	// shootObjectKeyPath names the identity key clients merge batched
	// shoots by.
	shootObjectKeyPath = "metadata.uid"
)

// handleSubscribeAllShoots resolves the user's visible namespaces and either
// runs the admin fleet subscription spanning all of them in one unscoped
// fetch, or transparently downgrades to the explicit-namespace-list handler
// over the user's own project namespaces.
func (c *Client) handleSubscribeAllShoots(req types.SubscribeAllShootsRequest) {
	user := c.sessionUser(kindShoots)
	if user == nil {
		return
	}
	projectList, err := c.hub.services.Projects.List(c.ctx, user)
	if err != nil {
		globals.AppLogger.Error("failed to list projects", "client", c.id, "error", err)
		c.Emit(types.EventSubscriptionError, types.SubscriptionError{Kind: kindShoots, Code: 500, Message: "Failed to fetch projects"})
		return
	}
	namespaces := make([]string, 0, len(projectList))
	for _, project := range projectList {
		namespaces = append(namespaces, project.Namespace)
	}

	isAdmin, err := c.hub.services.Admins.IsAdmin(c.ctx, user)
	if err != nil {
		globals.AppLogger.Error("admin check failed", "client", c.id, "user", user.Id, "error", err)
		isAdmin = false
	}
	if isAdmin {
		c.subscribeShootsAdmin(user, namespaces, req.Filter)
		return
	}
	namespacesAndFilters := make([]types.NamespaceSubscription, 0, len(namespaces))
	for _, namespace := range namespaces {
		namespacesAndFilters = append(namespacesAndFilters, types.NamespaceSubscription{Namespace: namespace, Filter: req.Filter})
	}
	c.subscribeShoots(user, namespacesAndFilters, projectList)
}

func (c *Client) handleSubscribeShoots(req types.SubscribeShootsRequest) {
	user := c.sessionUser(kindShoots)
	if user == nil {
		return
	}
	projectList, err := c.hub.services.Projects.List(c.ctx, user)
	if err != nil {
		globals.AppLogger.Error("failed to list projects", "client", c.id, "error", err)
		c.Emit(types.EventSubscriptionError, types.SubscriptionError{Kind: kindShoots, Code: 500, Message: "Failed to fetch projects"})
		return
	}
	c.subscribeShoots(user, req.Namespaces, projectList)
}

// subscribeShoots is the fleet subscription over an explicit namespace list.
// Rooms are joined only for namespaces the user's project list contains;
// fetches run concurrently per namespace and failures are isolated. The
// completion marker lists every requested namespace.
func (c *Client) subscribeShoots(user *types.User, namespacesAndFilters []types.NamespaceSubscription, projectList []*types.Project) {
	st := &c.families[familyShoots]
	st.mu.Lock()
	generation := c.nextGeneration(familyShoots)
	c.leaveShootRooms()
	targets := make([]types.NamespaceSubscription, 0, len(namespacesAndFilters))
	for _, nf := range namespacesAndFilters {
		if types.FindProjectByNamespace(projectList, nf.Namespace) == nil {
			continue
		}
		c.hub.JoinRoom(c, ShootsRoom(nf.Namespace, nf.Filter))
		targets = append(targets, nf)
	}
	st.mu.Unlock()

	emitter := newNamespacedBatchEmitter(c, familyShoots, generation, kindShoots, shootObjectKeyPath)
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(target types.NamespaceSubscription) {
			defer wg.Done()
			flt := c.hub.services.Filters.Lookup(target.Filter)
			shootList, err := c.hub.services.Shoots.List(c.ctx, user, target.Namespace, flt)
			if err != nil {
				globals.AppLogger.Error("failed to subscribe to shoots", "client", c.id, "namespace", target.Namespace, "error", err)
				c.emitError(familyShoots, generation, kindShoots, 500, "Failed to fetch shoots for namespace "+target.Namespace)
				return
			}
			emitter.BatchEmitObjects(shootsToItems(shootList), target.Namespace)
		}(target)
	}
	wg.Wait()

	emitter.Flush()
	namespaces := make([]string, 0, len(namespacesAndFilters))
	for _, nf := range namespacesAndFilters {
		namespaces = append(namespaces, nf.Namespace)
	}
	c.emitIfCurrent(familyShoots, generation, types.EventBatchNamespacedDone, types.BatchNamespacedDonePayload{
		Kind:       kindShoots,
		Namespaces: namespaces,
	})
}

// subscribeShootsAdmin spans all known namespaces with one unscoped fetch,
// grouping the result by namespace before batching.
func (c *Client) subscribeShootsAdmin(user *types.User, namespaces []string, filterName string) {
	st := &c.families[familyShoots]
	st.mu.Lock()
	generation := c.nextGeneration(familyShoots)
	c.leaveShootRooms()
	for _, namespace := range namespaces {
		c.hub.JoinRoom(c, ShootsRoom(namespace, filterName))
	}
	st.mu.Unlock()

	emitter := newNamespacedBatchEmitter(c, familyShoots, generation, kindShoots, shootObjectKeyPath)
	flt := c.hub.services.Filters.Lookup(filterName)
	shootList, err := c.hub.services.Shoots.List(c.ctx, user, "", flt)
	if err != nil {
		globals.AppLogger.Error("failed to subscribe to shoots", "client", c.id, "error", err)
		c.emitError(familyShoots, generation, kindShoots, 500, "Failed to fetch shoots for all namespaces")
	} else {
		for _, shoot := range shootList {
			emitter.BatchEmitObjects([]interface{}{shoot}, shoot.Metadata.Namespace)
		}
	}
	emitter.Flush()
	c.emitIfCurrent(familyShoots, generation, types.EventBatchNamespacedDone, types.BatchNamespacedDonePayload{
		Kind:       kindShoots,
		Namespaces: namespaces,
	})
}

// handleSubscribeShoot is the single-resource subscription. A target
// namespace outside the user's project list yields no subscription and no
// emitted objects: the namespace's existence is not revealed.
func (c *Client) handleSubscribeShoot(req types.SubscribeShootRequest) {
	user := c.sessionUser(kindShoot)
	if user == nil {
		return
	}
	st := &c.families[familyShoots]
	st.mu.Lock()
	generation := c.nextGeneration(familyShoots)
	c.leaveShootRooms()
	st.mu.Unlock()

	emitter := newNamespacedBatchEmitter(c, familyShoots, generation, kindShoot, shootObjectKeyPath)
	projectList, err := c.hub.services.Projects.List(c.ctx, user)
	if err != nil {
		globals.AppLogger.Error("failed to subscribe to shoot", "client", c.id, "error", err)
		c.emitError(familyShoots, generation, kindShoot, types.ErrorCode(err, http.StatusInternalServerError), "Failed to fetch shoot")
	} else if types.FindProjectByNamespace(projectList, req.Namespace) != nil {
		if c.joinRoomIfCurrent(familyShoots, generation, ShootRoom(req.Namespace, req.Name)) {
			shoot, err := c.hub.services.Shoots.Read(c.ctx, user, req.Name, req.Namespace)
			if err != nil {
				globals.AppLogger.Error("failed to subscribe to shoot", "client", c.id, "namespace", req.Namespace, "name", req.Name, "error", err)
				c.emitError(familyShoots, generation, kindShoot, types.ErrorCode(err, http.StatusInternalServerError), "Failed to fetch shoot")
			} else {
				emitter.BatchEmitObjects([]interface{}{shoot}, req.Namespace)
			}
		}
	}
	emitter.Flush()

	c.emitIfCurrent(familyShoots, generation, types.EventShootSubscriptionDone, types.ShootSubscriptionDonePayload{
		Kind:   kindShoot,
		Target: types.SubscriptionTarget{Name: req.Name, Namespace: req.Namespace},
	})
}

func shootsToItems(shoots []types.Shoot) []interface{} {
	items := make([]interface{}, 0, len(shoots))
	for _, shoot := range shoots {
		items = append(items, shoot)
	}
	return items
}

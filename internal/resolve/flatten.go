package resolve

import "github.com/handiism/factorio-mod-downloader/internal/model"

// Flatten returns the mods of tree in download order.
//
// The walk is post-order: children are emitted before their parent. The
// first occurrence of a name wins and excluded names are never emitted.
func Flatten(tree *model.DependencyNode, excluded model.NameSet) model.DownloadList {
	list := model.DownloadList{}
	seen := make(map[string]struct{})

	var walk func(node *model.DependencyNode)
	walk = func(node *model.DependencyNode) {
		if node == nil {
			return
		}
		for _, child := range node.Children {
			walk(child)
		}
		name := node.Mod.Name
		if _, ok := seen[name]; ok || excluded.Has(name) {
			return
		}
		seen[name] = struct{}{}
		list = append(list, node.Mod)
	}

	walk(tree)
	return list
}

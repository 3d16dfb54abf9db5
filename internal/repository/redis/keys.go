package redis

import "fmt"

const ns = "mesago:v1"

func KeyCatalog() string {
	return ns + ":catalog"
}

func KeyRoomSnapshot(roomKey string) string {
	return fmt.Sprintf("%s:room:%s:snapshot", ns, roomKey)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelRoomEvents() string {
	return ns + ":rooms:events"
}

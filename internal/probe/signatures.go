package probe

import "regexp"

// appSignature is one entry in the known-application table consulted by
// the body-pattern layer: a lowercase substring indicator, the key
// Extracted.Patterns carries for it, and the {name, icon} pair a
// consumer resolves it to via NameForPattern and IconForPattern.
type appSignature struct {
	substring string
	key       string
	name      string
	icon      string
}

// knownApplicationSignatures is the fixed substring dictionary used by
// body-pattern matching: roughly the self-hosted/homelab application
// surface a home or small-office network inventory is likely to see.
var knownApplicationSignatures = []appSignature{
	{"grafana", "grafana", "Grafana", "grafana"},
	{"portainer", "portainer", "Portainer", "portainer"},
	{"proxmox virtual environment", "proxmox", "Proxmox VE", "proxmox"},
	{"home assistant", "home-assistant", "Home Assistant", "home-assistant"},
	{"pi-hole", "pihole", "Pi-hole", "pihole"},
	{"adguard home", "adguard", "AdGuard Home", "adguard"},
	{"unifi", "unifi", "UniFi Controller", "unifi"},
	{"unifi network", "unifi-network", "UniFi Network", "unifi"},
	{"unifi video", "unifi-video", "UniFi Protect", "unifi"},
	{"synology", "synology-dsm", "Synology DSM", "synology"},
	{"qnap", "qnap", "QNAP QTS", "qnap"},
	{"openmediavault", "omv", "OpenMediaVault", "omv"},
	{"truenas", "truenas", "TrueNAS", "truenas"},
	{"unraid", "unraid", "Unraid", "unraid"},
	{"jellyfin", "jellyfin", "Jellyfin", "jellyfin"},
	{"plex", "plex", "Plex", "plex"},
	{"emby", "emby", "Emby", "emby"},
	{"tautulli", "tautulli", "Tautulli", "tautulli"},
	{"overseerr", "overseerr", "Overseerr", "overseerr"},
	{"ombi", "ombi", "Ombi", "ombi"},
	{"sonarr", "sonarr", "Sonarr", "sonarr"},
	{"radarr", "radarr", "Radarr", "radarr"},
	{"lidarr", "lidarr", "Lidarr", "lidarr"},
	{"bazarr", "bazarr", "Bazarr", "bazarr"},
	{"prowlarr", "prowlarr", "Prowlarr", "prowlarr"},
	{"readarr", "readarr", "Readarr", "readarr"},
	{"qbittorrent", "qbittorrent", "qBittorrent", "qbittorrent"},
	{"transmission", "transmission", "Transmission", "transmission"},
	{"deluge", "deluge", "Deluge", "deluge"},
	{"sabnzbd", "sabnzbd", "SABnzbd", "sabnzbd"},
	{"nzbget", "nzbget", "NZBGet", "nzbget"},
	{"nextcloud", "nextcloud", "Nextcloud", "nextcloud"},
	{"owncloud", "owncloud", "ownCloud", "owncloud"},
	{"seafile", "seafile", "Seafile", "seafile"},
	{"syncthing", "syncthing", "Syncthing", "syncthing"},
	{"filebrowser", "filebrowser", "File Browser", "filebrowser"},
	{"duplicati", "duplicati", "Duplicati", "duplicati"},
	{"urbackup", "urbackup", "UrBackup", "urbackup"},
	{"prometheus", "prometheus", "Prometheus", "prometheus"},
	{"alertmanager", "alertmanager", "Alertmanager", "alertmanager"},
	{"grafana loki", "loki", "Loki", "loki"},
	{"netdata", "netdata", "Netdata", "netdata"},
	{"zabbix", "zabbix", "Zabbix", "zabbix"},
	{"cacti", "cacti", "Cacti", "cacti"},
	{"checkmk", "checkmk", "Checkmk", "checkmk"},
	{"librenms", "librenms", "LibreNMS", "librenms"},
	{"observium", "observium", "Observium", "observium"},
	{"prtg", "prtg", "PRTG", "prtg"},
	{"netbox", "netbox", "NetBox", "netbox"},
	{"uptime kuma", "uptime-kuma", "Uptime Kuma", "uptime-kuma"},
	{"traefik", "traefik", "Traefik", "traefik"},
	{"caddy", "caddy", "Caddy", "caddy"},
	{"nginx proxy manager", "npm", "Nginx Proxy Manager", "npm"},
	{"haproxy", "haproxy", "HAProxy", "haproxy"},
	{"gitea", "gitea", "Gitea", "gitea"},
	{"forgejo", "forgejo", "Forgejo", "forgejo"},
	{"gogs", "gogs", "Gogs", "gogs"},
	{"gitlab", "gitlab", "GitLab", "gitlab"},
	{"jenkins", "jenkins", "Jenkins", "jenkins"},
	{"drone ci", "drone", "Drone CI", "drone"},
	{"harbor", "harbor", "Harbor", "harbor"},
	{"nexus repository", "nexus", "Nexus Repository", "nexus"},
	{"artifactory", "artifactory", "Artifactory", "artifactory"},
	{"watchtower", "watchtower", "Watchtower", "watchtower"},
	{"portainer agent", "portainer-agent", "Portainer Agent", "portainer"},
	{"rancher", "rancher", "Rancher", "rancher"},
	{"kubernetes dashboard", "k8s-dashboard", "Kubernetes Dashboard", "kubernetes"},
	{"longhorn", "longhorn", "Longhorn", "longhorn"},
	{"minio", "minio", "MinIO", "minio"},
	{"openwrt", "openwrt", "OpenWrt LuCI", "openwrt"},
	{"pfsense", "pfsense", "pfSense", "pfsense"},
	{"opnsense", "opnsense", "OPNsense", "opnsense"},
	{"kodi", "kodi", "Kodi", "kodi"},
	{"homebridge", "homebridge", "Homebridge", "homebridge"},
	{"node-red", "node-red", "Node-RED", "node-red"},
	{"esphome", "esphome", "ESPHome", "esphome"},
	{"zigbee2mqtt", "zigbee2mqtt", "Zigbee2MQTT", "zigbee2mqtt"},
	{"deconz", "deconz", "deCONZ", "deconz"},
	{"openhab", "openhab", "openHAB", "openhab"},
	{"domoticz", "domoticz", "Domoticz", "domoticz"},
	{"frigate", "frigate", "Frigate NVR", "frigate"},
	{"motioneye", "motioneye", "MotionEye", "motioneye"},
	{"scrypted", "scrypted", "Scrypted", "scrypted"},
	{"shinobi", "shinobi", "Shinobi", "shinobi"},
	{"freepbx", "freepbx", "FreePBX", "freepbx"},
	{"asterisk", "asterisk", "Asterisk", "asterisk"},
	{"mailcow", "mailcow", "Mailcow", "mailcow"},
	{"roundcube", "roundcube", "Roundcube", "roundcube"},
	{"rainloop", "rainloop", "RainLoop", "rainloop"},
	{"jitsi meet", "jitsi", "Jitsi Meet", "jitsi"},
	{"bigbluebutton", "bbb", "BigBlueButton", "bbb"},
	{"matrix synapse", "synapse", "Matrix Synapse", "matrix"},
	{"rocket.chat", "rocketchat", "Rocket.Chat", "rocketchat"},
	{"mattermost", "mattermost", "Mattermost", "mattermost"},
	{"discourse", "discourse", "Discourse", "discourse"},
	{"wordpress", "wordpress", "WordPress", "wordpress"},
	{"joomla", "joomla", "Joomla", "joomla"},
	{"drupal", "drupal", "Drupal", "drupal"},
	{"phpbb", "phpbb", "phpBB", "phpbb"},
	{"mediawiki", "mediawiki", "MediaWiki", "mediawiki"},
	{"wiki.js", "wikijs", "Wiki.js", "wikijs"},
	{"bookstack", "bookstack", "BookStack", "bookstack"},
	{"bitwarden", "bitwarden", "Bitwarden", "bitwarden"},
	{"vaultwarden", "vaultwarden", "Vaultwarden", "vaultwarden"},
	{"authelia", "authelia", "Authelia", "authelia"},
	{"keycloak", "keycloak", "Keycloak", "keycloak"},
	{"phpmyadmin", "phpmyadmin", "phpMyAdmin", "phpmyadmin"},
	{"adminer", "adminer", "Adminer", "adminer"},
	{"webmin", "webmin", "Webmin", "webmin"},
	{"cockpit", "cockpit", "Cockpit", "cockpit"},
	{"vmware esxi", "esxi", "VMware ESXi", "esxi"},
	{"vcenter", "vcenter", "vCenter Server", "vcenter"},
	{"xcp-ng", "xcp-ng", "XCP-ng", "xcp-ng"},
	{"cyberpanel", "cyberpanel", "CyberPanel", "cyberpanel"},
	{"cpanel", "cpanel", "cPanel", "cpanel"},
	{"plesk", "plesk", "Plesk", "plesk"},
	{"ispconfig", "ispconfig", "ISPConfig", "ispconfig"},
	{"grocy", "grocy", "Grocy", "grocy"},
	{"paperless-ngx", "paperless", "Paperless-ngx", "paperless"},
	{"immich", "immich", "Immich", "immich"},
	{"photoprism", "photoprism", "PhotoPrism", "photoprism"},
	{"calibre-web", "calibre-web", "Calibre-Web", "calibre-web"},
	{"kavita", "kavita", "Kavita", "kavita"},
	{"komga", "komga", "Komga", "komga"},
	{"heimdall", "heimdall", "Heimdall", "heimdall"},
	{"organizr", "organizr", "Organizr", "organizr"},
	{"homarr", "homarr", "Homarr", "homarr"},
	{"dashy", "dashy", "Dashy", "dashy"},
	{"influxdb", "influxdb", "InfluxDB", "influxdb"},
	{"chronograf", "chronograf", "Chronograf", "chronograf"},
	{"kapacitor", "kapacitor", "Kapacitor", "kapacitor"},
	{"telegraf", "telegraf", "Telegraf", "telegraf"},
	{"code-server", "code-server", "code-server", "code-server"},
	{"apache guacamole", "guacamole", "Apache Guacamole", "guacamole"},
	{"webssh", "webssh", "WebSSH", "webssh"},
}

// IconForPattern resolves a pattern key, as returned in Extracted.Patterns,
// to the icon hint of the known-application entry it came from ("" when
// the key is unknown).
func IconForPattern(key string) string {
	for _, sig := range knownApplicationSignatures {
		if sig.key == key {
			return sig.icon
		}
	}
	return ""
}

// NameForPattern resolves a pattern key to its display name.
func NameForPattern(key string) string {
	for _, sig := range knownApplicationSignatures {
		if sig.key == key {
			return sig.name
		}
	}
	return ""
}

type bannerSignature struct {
	substring string
	name      string
	versionRe *regexp.Regexp
}

// bannerSignatures is the deterministic substring table used to
// identify a non-HTTP service from its raw banner.
var bannerSignatures = []bannerSignature{
	{"ssh-2.0", "SSH", regexp.MustCompile(`SSH-2\.0-(\S+)`)},
	{"ssh-1.", "SSH", regexp.MustCompile(`SSH-1\.\S*-(\S+)`)},
	{"220 ", "FTP", regexp.MustCompile(`FTP\s*\(?([\w.\-]+)\)?`)},
	{"smtp", "SMTP", regexp.MustCompile(`SMTP\s+([\w.\-]+)`)},
	{"* ok", "IMAP", regexp.MustCompile(`IMAP\S*\s+([\w.\-]+)`)},
	{"imap", "IMAP", regexp.MustCompile(`IMAP\S*\s+([\w.\-]+)`)},
	{"+ok", "POP3", regexp.MustCompile(`POP3\s+([\w.\-]+)`)},
	{"mysql", "MySQL/MariaDB", regexp.MustCompile(`(\d+\.\d+\.\d+)-MariaDB`)},
	{"mariadb", "MySQL/MariaDB", regexp.MustCompile(`(\d+\.\d+\.\d+)-MariaDB`)},
	{"postgresql", "PostgreSQL", regexp.MustCompile(`PostgreSQL\s+([\d.]+)`)},
	{"-err wrong number", "Redis", regexp.MustCompile(`redis_version:([\d.]+)`)},
	{"redis_version", "Redis", regexp.MustCompile(`redis_version:([\d.]+)`)},
	{"mongodb", "MongoDB", regexp.MustCompile(`MongoDB\s+([\d.]+)`)},
	{"memcached", "Memcached", regexp.MustCompile(`VERSION\s+([\d.]+)`)},
	{"mqtt", "MQTT", nil},
	{"rfb 0", "VNC", regexp.MustCompile(`RFB 0(\d{3}\.\d{3})`)},
	{"\x03\x00\x00", "RDP", nil},
	{"sip/2.0", "SIP", nil},
	{"ldapv3", "LDAP", nil},
}

func init() {
	for i := range bannerSignatures {
		if bannerSignatures[i].versionRe == nil {
			bannerSignatures[i].versionRe = regexp.MustCompile(`$^`)
		}
	}
}
